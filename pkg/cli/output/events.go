package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// EventPrinter 把队列和列表事件逐行打印的监听器
type EventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEventPrinter 创建事件打印器
func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{w: w}
}

// StateChanged 实现 executor.QueueListener
func (p *EventPrinter) StateChanged(e *executor.QueueEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := e.Timestamp.Format("15:04:05.000")
	kind := kindColor(e.Kind).Sprintf("%-15s", e.Kind)
	if e.Task == nil {
		fmt.Fprintf(p.w, "%s [%s] %s\n", ts, e.Queue.Name(), kind)
		return
	}

	snap := task.Capture(e.Task)
	line := fmt.Sprintf("%s [%s] %s %s", ts, e.Queue.Name(), kind, snap.Title)
	if e.Kind == executor.EventTaskDone {
		line += " " + FormatStatus(snap.Status())
		if snap.DoneWithErrors {
			line += fmt.Sprintf(" (%s)", snap.ErrorMessage)
		}
	}
	fmt.Fprintln(p.w, line)
}

// JobDone 实现 executor.ListListener
func (p *EventPrinter) JobDone(e *executor.ListEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s [%s] %s tasks=%d\n",
		e.Timestamp.Format("15:04:05.000"), e.List.Name(),
		color.New(color.FgGreen, color.Bold).Sprint("job.done"), e.List.Len())
}

func kindColor(k executor.EventKind) *color.Color {
	switch k {
	case executor.EventStarted, executor.EventStopped:
		return color.New(color.FgMagenta)
	case executor.EventIdle, executor.EventEmpty:
		return color.New(color.FgHiBlack)
	case executor.EventTaskFetched:
		return color.New(color.FgYellow)
	case executor.EventTaskDone:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}
