package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/LENAX/task-queue/pkg/core/dispatch"
	"github.com/LENAX/task-queue/pkg/core/task"
)

func newTestSink(t *testing.T) *dispatch.Dispatcher {
	d := dispatch.NewDispatcher(t.Name())
	t.Cleanup(d.Close)
	return d
}

// execLog 记录任务执行顺序
type execLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *execLog) append(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *execLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// loggingTask 执行时把自身ID写入日志
func loggingTask(id string, el *execLog, sink dispatch.Sink) *task.Base[string] {
	return task.New(id, func(b *task.Base[string]) {
		el.append(id)
		b.SetResult(id)
	}, task.WithSink(sink), task.WithID(id))
}

// gatedTask 启动后通知 started，等待 release 关闭后结束
func gatedTask(id string, started chan<- string, release <-chan struct{}, sink dispatch.Sink) *task.Base[string] {
	return task.New(id, func(b *task.Base[string]) {
		started <- id
		<-release
		b.SetResult(id)
	}, task.WithSink(sink), task.WithID(id))
}

// eventRecorder 记录队列事件
type eventRecorder struct {
	mu     sync.Mutex
	events []*QueueEvent
	idle   chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{idle: make(chan struct{}, 64)}
}

func (r *eventRecorder) StateChanged(e *QueueEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if e.Kind == EventIdle {
		r.idle <- struct{}{}
	}
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *eventRecorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) waitIdle(t *testing.T) {
	t.Helper()
	select {
	case <-r.idle:
	case <-time.After(2 * time.Second):
		t.Fatalf("等待IDLE事件超时, 已收到: %v", r.kinds())
	}
}

func waitString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("等待信号超时")
		return ""
	}
}
