package tui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/mover"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.progressBar.Width = max(msg.Width-10, 10)
		return m, nil

	case spinner.TickMsg:
		if m.state != StateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.handleEvent(sorter.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, waitForResult(m.results)

	case batchDoneMsg:
		m.finish(msg.Stats, msg.Err)
		return m, nil
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		if !m.cancelling {
			m.cancelling = true
			logger.Get().Warn().Msg("用户取消批次")
			m.cancel()
		}
		return m, nil

	case "q", "esc", "enter":
		if m.done {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *model) handleEvent(ev sorter.Event) {
	switch ev.Kind {
	case sorter.ProgressEvent:
		m.percent = ev.Percent

	case sorter.StatusEvent:
		m.processed = ev.Status.Processed
		m.total = ev.Status.Total
		m.status = ev.Status.Message

	case sorter.FileEvent:
		r := ev.Result
		m.currentFile = filepath.Base(r.Task.Path)
		switch r.Outcome {
		case mover.Moved:
			m.moved++
			m.bytes += r.Task.Size
			if r.Renamed {
				m.renamed++
			}
		case mover.Skipped:
			m.skipped++
		case mover.Failed:
			m.failed++
			if r.Err != nil {
				m.lastErr = r.Err.Error()
			}
		}
	}
}

func (m *model) finish(stats *internal.BatchStats, err error) {
	m.done = true
	m.stats = stats
	m.err = err

	switch {
	case stats != nil && stats.Status == internal.BatchCancelled:
		m.state = StateCancelled
	case err != nil:
		m.state = StateFailed
	default:
		m.state = StateComplete
		m.percent = 100
	}

	m.logFinalStats()
}

func (m *model) logFinalStats() {
	elapsed := time.Since(m.startTime).Round(time.Millisecond)

	logger.Get().Info().Msg("========== 整理结束 ==========")
	logger.Get().Info().Msgf("处理文件: %d/%d", m.processed, m.total)
	logger.Get().Info().Msgf("已移动: %d 个（重命名 %d 个），共 %s", m.moved, m.renamed, humanize.IBytes(uint64(m.bytes)))
	logger.Get().Info().Msgf("已跳过: %d 个", m.skipped)
	logger.Get().Info().Msgf("失败: %d 个", m.failed)
	logger.Get().Info().Msgf("总耗时: %v", elapsed)
	logger.Get().Info().Msg("============================")
}
