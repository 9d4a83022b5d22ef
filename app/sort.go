package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/internal/journal"
	"github.com/moyu-x/file-sorter/internal/runner"
	"github.com/moyu-x/file-sorter/pkg/classifier"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/planner"
	"github.com/moyu-x/file-sorter/pkg/resolver"
	"github.com/moyu-x/file-sorter/pkg/sorter"
	"github.com/moyu-x/file-sorter/tui"
)

type SortOptions struct {
	Source      string
	Destination string
	Overwrite   string
	Mode        string
	ByMonth     bool
	DryRun      bool
	SkipHidden  bool
	Table       *classifier.Table

	FailureLog  string
	Journal     bool
	JournalPath string
	TUI         bool

	// Fs 为空时使用真实文件系统并启用目录锁
	Fs afero.Fs
}

// BuildOptions 将命令行/配置中的字符串选项转换为批次配置
func BuildOptions(opts *SortOptions) (sorter.Options, error) {
	policy, err := resolver.ParsePolicy(opts.Overwrite)
	if err != nil {
		return sorter.Options{}, fmt.Errorf("%w: %v", sorter.ErrConfig, err)
	}

	layout, err := planner.ParseLayout(opts.Mode)
	if err != nil {
		return sorter.Options{}, fmt.Errorf("%w: %v", sorter.ErrConfig, err)
	}

	return sorter.Options{
		Source:      opts.Source,
		Destination: opts.Destination,
		Policy:      policy,
		Mode:        planner.Mode{Layout: layout, Monthly: opts.ByMonth},
		Table:       opts.Table,
		DryRun:      opts.DryRun,
		SkipHidden:  opts.SkipHidden,
	}, nil
}

// RunSort 运行一个整理批次，obs 接收进度回调（TUI 模式下忽略）
func RunSort(ctx context.Context, opts *SortOptions, obs sorter.Observer) (*internal.BatchStats, error) {
	sortOpts, err := BuildOptions(opts)
	if err != nil {
		return nil, err
	}

	fs := opts.Fs
	locking := false
	if fs == nil {
		fs = afero.NewOsFs()
		locking = true
	}

	failureLog := logger.OpenFailureLog(opts.FailureLog)
	defer failureLog.Close()

	r, err := runner.New(sorter.New(fs, failureLog.Logger))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	r.Locking = locking

	var recorder *journal.Recorder
	var history *journal.Journal
	if opts.Journal {
		history, err = journal.Open(opts.JournalPath)
		if err != nil {
			logger.Get().Warn().Err(err).Msg("打开历史数据库失败，本次批次不记录历史")
		} else {
			defer history.Close()
			recorder = journal.NewRecorder()
		}
	}

	observers := sorter.Multi{}
	if recorder != nil {
		observers = append(observers, recorder)
	}

	var stats *internal.BatchStats
	if opts.TUI {
		stats, err = tui.Run(ctx, tui.Config{Runner: r, Options: sortOpts, Observer: observers})
	} else {
		if obs != nil {
			observers = append(observers, obs)
		}
		stats, err = r.Run(ctx, sortOpts, observers)
	}

	if history != nil && stats != nil && !errors.Is(err, sorter.ErrConfig) {
		batch := journal.Batch{
			BatchStats:  *stats,
			Source:      sortOpts.Source,
			Destination: sortOpts.Destination,
			Mode:        sortOpts.Mode.String(),
			Policy:      sortOpts.Policy.String(),
			DryRun:      sortOpts.DryRun,
		}
		if saveErr := history.Save(batch, recorder.Moves()); saveErr != nil {
			logger.Get().Warn().Err(saveErr).Msg("保存批次历史失败")
		}
	}

	return stats, err
}
