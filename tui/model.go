package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/internal/runner"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

type State int

const (
	StateRunning State = iota
	StateComplete
	StateFailed
	StateCancelled
)

type model struct {
	state   State
	opts    sorter.Options
	events  <-chan sorter.Event
	results <-chan runner.Result
	cancel  context.CancelFunc

	percent     int
	processed   int
	total       int
	moved       int
	renamed     int
	skipped     int
	failed      int
	bytes       int64
	status      string
	currentFile string
	lastErr     string
	cancelling  bool
	startTime   time.Time

	done  bool
	stats *internal.BatchStats
	err   error

	progressBar progress.Model
	spinner     spinner.Model
}

func newModel(opts sorter.Options, events <-chan sorter.Event, results <-chan runner.Result, cancel context.CancelFunc) *model {
	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.PercentageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Width(4)

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &model{
		state:       StateRunning,
		opts:        opts,
		events:      events,
		results:     results,
		cancel:      cancel,
		startTime:   time.Now(),
		progressBar: progressBar,
		spinner:     s,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan sorter.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForResult(results <-chan runner.Result) tea.Cmd {
	return func() tea.Msg {
		return batchDoneMsg(<-results)
	}
}
