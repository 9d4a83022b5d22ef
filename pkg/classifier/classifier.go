package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Others 未匹配任何分类的扩展名归入此类
const Others = "others"

// Category 一个分类及其包含的扩展名（小写，带点前缀）
type Category struct {
	Name       string   `mapstructure:"name"`
	Extensions []string `mapstructure:"extensions"`
}

// Table 有序且不可变的扩展名分类表
// 各分类的扩展名集合互不相交，查找顺序即表中顺序
type Table struct {
	categories []Category
	index      map[string]string
}

var defaultCategories = []Category{
	{Name: "images", Extensions: []string{".jpg", ".png", ".jpeg", ".gif"}},
	{Name: "videos", Extensions: []string{".mp4", ".mkv"}},
	{Name: "musics", Extensions: []string{".mp3", ".wav"}},
	{Name: "zip", Extensions: []string{".zip", ".tgz", ".rar", ".tar"}},
	{Name: "documents", Extensions: []string{".pdf", ".docx", ".csv", ".xlsx", ".pptx", ".doc", ".xls"}},
	{Name: "setup", Extensions: []string{".msi", ".exe"}},
	{Name: "programs", Extensions: []string{".py", ".c", ".cpp", ".php"}},
	{Name: "design", Extensions: []string{".xd", ".psd"}},
}

// DefaultTable 返回内置分类表
func DefaultTable() *Table {
	t, err := NewTable(defaultCategories)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable 根据给定分类构建分类表
// 扩展名统一转为小写并补全点前缀；同一扩展名出现在两个分类中时返回错误
func NewTable(categories []Category) (*Table, error) {
	t := &Table{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]string),
	}

	seen := make(map[string]bool)
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("分类名称不能为空")
		}
		if name == Others {
			return nil, fmt.Errorf("分类名称 %q 为保留名称", Others)
		}
		if seen[name] {
			return nil, fmt.Errorf("分类 %q 重复定义", name)
		}
		seen[name] = true

		exts := make([]string, 0, len(c.Extensions))
		for _, ext := range c.Extensions {
			ext = Normalize(ext)
			if ext == "" {
				continue
			}
			if owner, ok := t.index[ext]; ok {
				if owner == name {
					continue
				}
				return nil, fmt.Errorf("扩展名 %s 同时属于分类 %q 和 %q", ext, owner, name)
			}
			t.index[ext] = name
			exts = append(exts, ext)
		}
		t.categories = append(t.categories, Category{Name: name, Extensions: exts})
	}

	return t, nil
}

// Normalize 将扩展名转为小写并保证带点前缀，空字符串保持为空
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Ext 返回文件名的小写扩展名
// 开头的点不视为扩展名分隔符，因此 ".bashrc" 没有扩展名
func Ext(name string) string {
	_, ext := SplitExt(filepath.Base(name))
	return strings.ToLower(ext)
}

// SplitExt 将文件名拆分为主体和扩展名，保留原始大小写
func SplitExt(name string) (string, string) {
	trimmed := strings.TrimLeft(name, ".")
	if trimmed == "" {
		return name, ""
	}
	ext := filepath.Ext(trimmed)
	if ext == "." {
		return name, ""
	}
	return name[:len(name)-len(ext)], ext
}

// Classify 返回扩展名所属的分类，未匹配时返回 others
func (t *Table) Classify(ext string) string {
	if name, ok := t.index[Normalize(ext)]; ok {
		return name
	}
	return Others
}

// Categories 按查找顺序返回全部分类名称，最后一个总是 others
func (t *Table) Categories() []string {
	names := make([]string, 0, len(t.categories)+1)
	for _, c := range t.categories {
		names = append(names, c.Name)
	}
	return append(names, Others)
}

// Extensions 返回某个分类的扩展名副本
func (t *Table) Extensions(name string) []string {
	for _, c := range t.categories {
		if c.Name == name {
			return append([]string(nil), c.Extensions...)
		}
	}
	return nil
}
