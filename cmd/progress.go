package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/moyu-x/file-sorter/pkg/sorter"
)

// consoleObserver 在终端中显示进度条，非终端输出时逐行打印状态消息
type consoleObserver struct {
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out, interactive: isTerminal(out)}
}

func (c *consoleObserver) Progress(percent int) {
	if !c.interactive {
		return
	}
	if c.bar == nil {
		c.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionSetDescription("整理中"),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}
	_ = c.bar.Set(percent)
}

func (c *consoleObserver) Status(status sorter.Status) {
	if !c.interactive {
		fmt.Fprintln(c.out, status.Message)
		return
	}

	if status.Kind == sorter.Running {
		if c.bar != nil {
			c.bar.Describe(status.Message)
		}
		return
	}

	if c.bar != nil {
		if status.Kind == sorter.Completed {
			_ = c.bar.Finish()
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out, status.Message)
}
