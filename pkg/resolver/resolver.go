package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/pkg/classifier"
)

// Policy 目标路径已存在时的处理策略
type Policy int

const (
	// Rename 追加自增序号 _1, _2, ... 直到找到空闲路径
	Rename Policy = iota
	// Skip 跳过该文件
	Skip
)

// MaxRenameAttempts 自增序号的上限，超过后视为单个文件失败
const MaxRenameAttempts = 10000

// ErrRenameExhausted 在上限内找不到空闲文件名
var ErrRenameExhausted = errors.New("重命名序号已耗尽")

func (p Policy) String() string {
	switch p {
	case Rename:
		return "rename"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy 解析覆盖策略名称，空字符串视为 rename
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rename":
		return Rename, nil
	case "skip":
		return Skip, nil
	default:
		return Rename, fmt.Errorf("未知的覆盖策略: %q（可选 rename, skip）", s)
	}
}

// Action 冲突处理结果：跳过，或使用 Path 继续
type Action struct {
	Skip    bool
	Path    string
	Renamed bool
}

// Resolve 根据策略为 target 确定最终路径
func Resolve(fs afero.Fs, target string, policy Policy) (Action, error) {
	return ResolveReserved(fs, target, policy, nil)
}

// ResolveReserved 与 Resolve 相同，但 reserved 中的路径也视为已占用
// 预演时用它记录本批次已规划的目标路径
func ResolveReserved(fs afero.Fs, target string, policy Policy, reserved map[string]bool) (Action, error) {
	taken := func(path string) (bool, error) {
		if reserved[path] {
			return true, nil
		}
		return Exists(fs, path)
	}

	exists, err := taken(target)
	if err != nil {
		return Action{}, fmt.Errorf("检查文件是否存在失败: %w", err)
	}
	if !exists {
		return Action{Path: target}, nil
	}

	if policy == Skip {
		return Action{Skip: true}, nil
	}

	dir, name := filepath.Split(target)
	base, ext := classifier.SplitExt(name)

	for i := 1; i <= MaxRenameAttempts; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		exists, err := taken(newPath)
		if err != nil {
			return Action{}, fmt.Errorf("检查文件是否存在失败: %w", err)
		}
		if !exists {
			return Action{Path: newPath, Renamed: true}, nil
		}
	}

	return Action{}, fmt.Errorf("%s: %w", target, ErrRenameExhausted)
}

// Exists 检查路径上是否有任何条目，符号链接本身也算（包括指向不存在目标的链接）
func Exists(fs afero.Fs, path string) (bool, error) {
	var err error
	if lstater, ok := fs.(afero.Lstater); ok {
		_, _, err = lstater.LstatIfPossible(path)
	} else {
		_, err = fs.Stat(path)
	}
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
