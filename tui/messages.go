package tui

import (
	"github.com/moyu-x/file-sorter/internal/runner"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

type eventMsg sorter.Event

// 事件通道已关闭，终止状态已送达
type eventsClosedMsg struct{}

type batchDoneMsg runner.Result
