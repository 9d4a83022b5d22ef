package planner

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/classifier"
)

// Layout 分类之外的目录组织方式，同一时间只有一种生效
type Layout int

const (
	// ByCategory 默认方式：目标目录/分类
	ByCategory Layout = iota
	// ByExtension 目标目录/大写扩展名
	ByExtension
	// ByDate 目标目录/分类/年份（或年-月）
	ByDate
	// BySize 目标目录/分类/大小分组
	BySize
)

const (
	MiB = 1024 * 1024
	GiB = 1024 * 1024 * 1024

	SmallFiles  = "Small Files"
	MediumFiles = "Medium Files"
	LargeFiles  = "Large Files"

	// NoExtension 按扩展名组织时，无扩展名文件使用的目录
	NoExtension = "NO_EXTENSION"
)

var layoutNames = map[Layout]string{
	ByCategory:  "category",
	ByExtension: "extension",
	ByDate:      "date",
	BySize:      "size",
}

func (l Layout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// ParseLayout 解析组织方式名称，空字符串视为 category
func ParseLayout(s string) (Layout, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ByCategory, nil
	}
	for l, name := range layoutNames {
		if name == s {
			return l, nil
		}
	}
	return ByCategory, fmt.Errorf("未知的组织方式: %q（可选 category, extension, date, size）", s)
}

// Mode 组织方式及按月细分标志，Monthly 仅对 ByDate 有效
type Mode struct {
	Layout  Layout
	Monthly bool
}

func (m Mode) String() string {
	if m.Layout == ByDate && m.Monthly {
		return "date (monthly)"
	}
	return m.Layout.String()
}

// Decision 单个文件的放置结果
type Decision struct {
	Category string
	Dir      string
}

// Plan 计算文件的目标目录，不访问文件系统
func Plan(table *classifier.Table, task internal.FileTask, mode Mode, root string) Decision {
	switch mode.Layout {
	case ByExtension:
		category := ExtensionFolder(task.Ext)
		return Decision{Category: category, Dir: filepath.Join(root, category)}
	case ByDate:
		category := table.Classify(task.Ext)
		return Decision{
			Category: category,
			Dir:      filepath.Join(root, category, DateFolder(task.ModTime, mode.Monthly)),
		}
	case BySize:
		category := table.Classify(task.Ext)
		return Decision{
			Category: category,
			Dir:      filepath.Join(root, category, SizeBucket(task.Size)),
		}
	default:
		category := table.Classify(task.Ext)
		return Decision{Category: category, Dir: filepath.Join(root, category)}
	}
}

// ExtensionFolder 返回去掉点前缀的大写扩展名
func ExtensionFolder(ext string) string {
	name := strings.TrimPrefix(ext, ".")
	if name == "" {
		return NoExtension
	}
	return cases.Upper(language.Und).String(name)
}

// DateFolder 返回 YYYY 或 YYYY-MM 格式的日期目录名
func DateFolder(t time.Time, monthly bool) string {
	if monthly {
		return t.Format("2006-01")
	}
	return t.Format("2006")
}

// SizeBucket 按 1 MiB 和 1 GiB 为界返回大小分组，边界值归入较大的分组
func SizeBucket(size int64) string {
	switch {
	case size < MiB:
		return SmallFiles
	case size < GiB:
		return MediumFiles
	default:
		return LargeFiles
	}
}
