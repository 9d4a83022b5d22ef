package sorter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/classifier"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/mover"
	"github.com/moyu-x/file-sorter/pkg/planner"
	"github.com/moyu-x/file-sorter/pkg/resolver"
	"github.com/moyu-x/file-sorter/pkg/scanner"
)

var (
	// ErrConfig 配置错误，批次不会开始
	ErrConfig           = errors.New("配置错误")
	ErrEmptySource      = fmt.Errorf("%w: 源目录不能为空", ErrConfig)
	ErrEmptyDestination = fmt.Errorf("%w: 目标目录不能为空", ErrConfig)
)

// TraversalError 源目录无法遍历，批次终止
type TraversalError struct {
	Root string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("遍历源目录 %s 失败: %v", e.Root, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// Options 一次批次运行的配置，运行期间不可修改
type Options struct {
	Source      string
	Destination string
	Policy      resolver.Policy
	Mode        planner.Mode
	Table       *classifier.Table
	DryRun      bool
	// SkipHidden 为 true 时忽略以点开头的文件和目录
	SkipHidden bool
}

// Validate 检查必填路径
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Source) == "" {
		return ErrEmptySource
	}
	if strings.TrimSpace(o.Destination) == "" {
		return ErrEmptyDestination
	}
	return nil
}

// Sorter 顺序执行 遍历 → 规划 → 解析冲突 → 移动
type Sorter struct {
	Fs         afero.Fs
	FailureLog zerolog.Logger
}

func New(fs afero.Fs, failureLog zerolog.Logger) *Sorter {
	return &Sorter{Fs: fs, FailureLog: failureLog}
}

// Run 执行一个批次
// 单个文件失败不会中断批次；只有配置错误、目标目录无法创建或源目录遍历失败才会提前结束。
// ctx 在文件之间检查，取消后以 Cancelled 状态结束。
func (s *Sorter) Run(ctx context.Context, opts Options, obs Observer) (*internal.BatchStats, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	fileObs, _ := obs.(FileObserver)

	stats := &internal.BatchStats{
		ID:        uuid.NewString(),
		Status:    internal.BatchRunning,
		StartedAt: time.Now(),
	}
	log := logger.Get().With().Str("batch", stats.ID).Logger()

	finish := func(kind StatusKind, message string, err error) {
		stats.Status = kind.batchStatus()
		stats.FinishedAt = time.Now()
		obs.Status(Status{
			Kind:      kind,
			Processed: stats.Processed,
			Total:     stats.Total,
			Message:   message,
			Err:       err,
		})
	}

	if err := opts.Validate(); err != nil {
		finish(Failed, err.Error(), err)
		return stats, err
	}

	table := opts.Table
	if table == nil {
		table = classifier.DefaultTable()
	}

	source := absPath(opts.Source)
	dest := absPath(opts.Destination)

	log.Info().
		Str("source", source).
		Str("destination", dest).
		Str("mode", opts.Mode.String()).
		Str("policy", opts.Policy.String()).
		Bool("dry_run", opts.DryRun).
		Msg("开始整理文件")

	if !opts.DryRun {
		if err := s.Fs.MkdirAll(dest, 0755); err != nil {
			err = fmt.Errorf("创建目标目录失败: %w", err)
			s.FailureLog.Error().Err(err).Str("destination", dest).Msg("An error occurred during sorting")
			log.Error().Err(err).Msg("创建目标目录失败")
			finish(Failed, MsgFailed, err)
			return stats, err
		}
	}

	walker := scanner.NewFileWalker(s.Fs)
	walker.Exclude = []string{dest}
	walker.ExcludeFiles = []string{filepath.Join(dest, internal.LockFileName)}
	walker.IncludeHidden = !opts.SkipHidden

	tasks, err := walker.Collect(source)
	if err != nil {
		err = &TraversalError{Root: source, Err: err}
		s.FailureLog.Error().Err(err).Str("source", source).Msg("An error occurred during sorting")
		log.Error().Err(err).Msg("遍历源目录失败")
		finish(Failed, MsgFailed, err)
		return stats, err
	}

	stats.Total = len(tasks)
	if stats.Total == 0 {
		log.Info().Msg("源目录中没有文件")
		finish(Completed, MsgCompleted, nil)
		return stats, nil
	}

	m := mover.New(s.Fs, opts.Policy, s.FailureLog)
	m.DryRun = opts.DryRun

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("processed", stats.Processed).Int("total", stats.Total).Msg("批次已取消")
			finish(Cancelled, MsgCancelled, err)
			return stats, err
		}

		decision := planner.Plan(table, task, opts.Mode, dest)
		result := m.Place(task, decision)

		switch result.Outcome {
		case mover.Moved:
			stats.Moved++
			stats.Bytes += task.Size
			if result.Renamed {
				stats.Renamed++
			}
		case mover.Skipped:
			stats.Skipped++
		case mover.Failed:
			stats.Failed++
		}
		stats.Processed++

		obs.Progress(stats.Percent())
		obs.Status(runningStatus(stats))
		if fileObs != nil {
			fileObs.FileDone(result)
		}
	}

	log.Info().
		Int("total", stats.Total).
		Int("moved", stats.Moved).
		Int("renamed", stats.Renamed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(stats.StartedAt).Round(time.Millisecond)).
		Msg("整理完成")

	finish(Completed, MsgCompleted, nil)
	return stats, nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
