package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/internal/runner"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

type Config struct {
	Runner  *runner.Runner
	Options sorter.Options
	// Observer 额外的观察者，例如历史记录
	Observer sorter.Observer
}

// Run 在后台启动批次，并在终端界面中显示进度直到用户退出
func Run(ctx context.Context, cfg Config) (*internal.BatchStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := sorter.NewChannelObserver(internal.DefaultBufferSize)
	obs := sorter.Multi{events}
	if cfg.Observer != nil {
		obs = append(obs, cfg.Observer)
	}

	results, err := cfg.Runner.Start(ctx, cfg.Options, obs)
	if err != nil {
		return nil, err
	}

	logger.Get().Info().Msg("启动 TUI 界面")

	m := newModel(cfg.Options, events.Events(), results, cancel)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		logger.Get().Error().Err(err).Msg("TUI 运行错误")
	} else {
		logger.Get().Info().Msg("TUI 正常退出")
	}

	if fm, ok := final.(*model); ok && fm.done {
		return fm.stats, fm.err
	}

	// 界面提前退出时取消批次，并排空事件直到批次结束
	cancel()
	go func() {
		for range events.Events() {
		}
	}()
	res := <-results
	if err != nil {
		return res.Stats, err
	}
	return res.Stats, res.Err
}
