package mover

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/hasher"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/planner"
	"github.com/moyu-x/file-sorter/pkg/resolver"
)

// 提交前目标路径被外部占用时，重新解析的最大次数
const maxCommitRetries = 3

// Outcome 单个文件的处理结果
type Outcome int

const (
	Moved Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result 单个文件的执行结果
type Result struct {
	Task        internal.FileTask
	Decision    planner.Decision
	Outcome     Outcome
	Destination string
	Renamed     bool
	DryRun      bool
	Err         error
}

// Mover 负责创建目标目录并移动文件
// 所有文件系统错误都写入失败日志并以 Failed 结果返回，不会中断批次
type Mover struct {
	Fs         afero.Fs
	Policy     resolver.Policy
	FailureLog zerolog.Logger
	DryRun     bool

	// 预演时本批次已规划的目标路径
	planned map[string]bool
}

// New 创建 Mover
func New(fs afero.Fs, policy resolver.Policy, failureLog zerolog.Logger) *Mover {
	return &Mover{
		Fs:         fs,
		Policy:     policy,
		FailureLog: failureLog,
	}
}

// Place 解析冲突后执行移动
func (m *Mover) Place(task internal.FileTask, decision planner.Decision) Result {
	target := filepath.Join(decision.Dir, task.Name)

	if filepath.Clean(task.Path) == target {
		logger.Get().Debug().Str("file", task.Path).Msg("文件已在目标位置，跳过")
		return Result{Task: task, Decision: decision, Outcome: Skipped, Destination: target, DryRun: m.DryRun}
	}

	action, err := resolver.ResolveReserved(m.Fs, target, m.Policy, m.planned)
	if err != nil {
		return m.fail(task, decision, target, err)
	}

	return m.Execute(task, decision, action)
}

// Execute 按已解析的 action 处理文件
func (m *Mover) Execute(task internal.FileTask, decision planner.Decision, action resolver.Action) Result {
	target := filepath.Join(decision.Dir, task.Name)

	if m.DryRun {
		if !action.Skip {
			if m.planned == nil {
				m.planned = make(map[string]bool)
			}
			m.planned[action.Path] = true
		}
		return Result{
			Task:        task,
			Decision:    decision,
			Outcome:     outcomeOf(action),
			Destination: action.Path,
			Renamed:     action.Renamed,
			DryRun:      true,
		}
	}

	// 确保目标目录存在
	if err := m.Fs.MkdirAll(decision.Dir, 0755); err != nil {
		return m.fail(task, decision, target, fmt.Errorf("创建目录失败: %w", err))
	}

	if action.Skip {
		logger.Get().Debug().
			Str("source", task.Path).
			Str("destination", target).
			Msg("目标文件已存在，跳过")
		return Result{Task: task, Decision: decision, Outcome: Skipped}
	}

	// 提交前重新检查目标路径，避免覆盖在此期间出现的文件
	for attempt := 0; ; attempt++ {
		exists, err := resolver.Exists(m.Fs, action.Path)
		if err != nil {
			return m.fail(task, decision, action.Path, fmt.Errorf("检查文件是否存在失败: %w", err))
		}
		if !exists {
			break
		}
		if attempt >= maxCommitRetries {
			return m.fail(task, decision, action.Path, fmt.Errorf("目标路径持续被占用: %s", action.Path))
		}

		logger.Get().Debug().Str("path", action.Path).Msg("目标路径已被占用，重新解析")
		action, err = resolver.Resolve(m.Fs, target, m.Policy)
		if err != nil {
			return m.fail(task, decision, target, err)
		}
		if action.Skip {
			return Result{Task: task, Decision: decision, Outcome: Skipped}
		}
	}

	if err := m.moveFile(task.Path, action.Path); err != nil {
		return m.fail(task, decision, action.Path, err)
	}

	logger.Get().Debug().
		Str("source", task.Path).
		Str("destination", action.Path).
		Str("category", decision.Category).
		Bool("renamed", action.Renamed).
		Msg("文件移动完成")

	return Result{
		Task:        task,
		Decision:    decision,
		Outcome:     Moved,
		Destination: action.Path,
		Renamed:     action.Renamed,
	}
}

// moveFile 使用 rename 移动文件，失败时（例如跨文件系统）复制并校验后删除源文件
// 符号链接在目标位置重建为相同的链接，不复制其指向的内容
func (m *Mover) moveFile(src, dst string) error {
	renameErr := m.Fs.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	logger.Get().Debug().
		Err(renameErr).
		Str("source", src).
		Str("destination", dst).
		Msg("直接重命名失败，尝试复制后删除")

	if isSymlink(m.Fs, src) {
		if err := m.relink(src, dst); err != nil {
			return fmt.Errorf("重命名失败: %v; 重建符号链接失败: %w", renameErr, err)
		}
	} else if _, err := hasher.CopyVerified(m.Fs, src, dst); err != nil {
		return fmt.Errorf("重命名失败: %v; 复制失败: %w", renameErr, err)
	}

	if err := m.Fs.Remove(src); err != nil {
		// 源文件无法删除时撤销复制，文件保留在原位置
		_ = m.Fs.Remove(dst)
		return fmt.Errorf("删除原文件失败: %w", err)
	}

	return nil
}

func (m *Mover) relink(src, dst string) error {
	reader, canRead := m.Fs.(afero.LinkReader)
	linker, canLink := m.Fs.(afero.Linker)
	if !canRead || !canLink {
		return fmt.Errorf("文件系统不支持符号链接: %s", src)
	}

	linkTarget, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(linkTarget, dst)
}

func isSymlink(fs afero.Fs, path string) bool {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return false
	}
	info, _, err := lstater.LstatIfPossible(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func (m *Mover) fail(task internal.FileTask, decision planner.Decision, destination string, err error) Result {
	m.FailureLog.Error().
		Str("source", task.Path).
		Str("destination", destination).
		Str("category", decision.Category).
		Err(err).
		Msgf("Failed to move file %s to %s", task.Path, decision.Dir)

	logger.Get().Warn().Err(err).Str("file", task.Path).Msg("处理文件失败")

	return Result{
		Task:        task,
		Decision:    decision,
		Outcome:     Failed,
		Destination: destination,
		Err:         err,
	}
}

func outcomeOf(action resolver.Action) Outcome {
	if action.Skip {
		return Skipped
	}
	return Moved
}
