package sorter

import (
	"fmt"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/mover"
)

const (
	MsgCompleted = "File sorting completed."
	MsgFailed    = "An error occurred during sorting. Check logs for details."
	MsgCancelled = "File sorting cancelled."
)

// StatusKind 区分进度更新与终止状态
type StatusKind int

const (
	Running StatusKind = iota
	Completed
	Failed
	Cancelled
)

func (k StatusKind) String() string {
	switch k {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}

// Terminal 报告该状态是否为批次的最后一条状态
func (k StatusKind) Terminal() bool {
	return k != Running
}

func (k StatusKind) batchStatus() internal.BatchStatus {
	switch k {
	case Completed:
		return internal.BatchCompleted
	case Failed:
		return internal.BatchFailed
	case Cancelled:
		return internal.BatchCancelled
	default:
		return internal.BatchRunning
	}
}

// Status 状态回调的内容
type Status struct {
	Kind      StatusKind
	Processed int
	Total     int
	Message   string
	Err       error
}

func runningStatus(stats *internal.BatchStats) Status {
	return Status{
		Kind:      Running,
		Processed: stats.Processed,
		Total:     stats.Total,
		Message:   fmt.Sprintf("Processed %d/%d files, %d files left", stats.Processed, stats.Total, stats.Remaining()),
	}
}

// Observer 接收批次进度
// Progress 在每个文件处理后调用，百分比单调不减；
// Status 在每个文件处理后调用一次，并在结束时以终止状态恰好调用一次
type Observer interface {
	Progress(percent int)
	Status(status Status)
}

// FileObserver 可选接口，接收每个文件的处理结果
type FileObserver interface {
	FileDone(result mover.Result)
}

// ObserverFuncs 用函数实现 Observer 和 FileObserver，nil 字段被忽略
type ObserverFuncs struct {
	OnProgress func(percent int)
	OnStatus   func(status Status)
	OnFile     func(result mover.Result)
}

func (o ObserverFuncs) Progress(percent int) {
	if o.OnProgress != nil {
		o.OnProgress(percent)
	}
}

func (o ObserverFuncs) Status(status Status) {
	if o.OnStatus != nil {
		o.OnStatus(status)
	}
}

func (o ObserverFuncs) FileDone(result mover.Result) {
	if o.OnFile != nil {
		o.OnFile(result)
	}
}

// Multi 将回调依次分发给多个 Observer
type Multi []Observer

func (m Multi) Progress(percent int) {
	for _, o := range m {
		o.Progress(percent)
	}
}

func (m Multi) Status(status Status) {
	for _, o := range m {
		o.Status(status)
	}
}

func (m Multi) FileDone(result mover.Result) {
	for _, o := range m {
		if fo, ok := o.(FileObserver); ok {
			fo.FileDone(result)
		}
	}
}

// EventKind 通道事件类型
type EventKind int

const (
	ProgressEvent EventKind = iota
	StatusEvent
	FileEvent
)

// Event ChannelObserver 发出的事件
type Event struct {
	Kind    EventKind
	Percent int
	Status  Status
	Result  mover.Result
}

// ChannelObserver 将回调转换为通道事件，终止状态发出后关闭通道
// 批次在后台运行、宿主在自己的线程上消费事件时使用
type ChannelObserver struct {
	events chan Event
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = internal.DefaultBufferSize
	}
	return &ChannelObserver{events: make(chan Event, buffer)}
}

// Events 返回只读事件通道
func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

func (c *ChannelObserver) Progress(percent int) {
	c.events <- Event{Kind: ProgressEvent, Percent: percent}
}

func (c *ChannelObserver) Status(status Status) {
	c.events <- Event{Kind: StatusEvent, Status: status}
	if status.Kind.Terminal() {
		close(c.events)
	}
}

func (c *ChannelObserver) FileDone(result mover.Result) {
	c.events <- Event{Kind: FileEvent, Result: result}
}

type nopObserver struct{}

func (nopObserver) Progress(int) {}
func (nopObserver) Status(Status) {}
