package executor

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/LENAX/task-queue/internal/listener"
	"github.com/LENAX/task-queue/pkg/core/dispatch"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// TaskList 顺序批处理任务列表（对外导出）
// Process 后任务集合固定，由一个goroutine依次执行到底，不支持停止或取消
type TaskList struct {
	name string
	sink dispatch.Sink

	mu        sync.RWMutex
	tasks     []task.Task
	started   bool
	processed bool
	done      chan struct{}

	listeners listener.Registry[ListListener]
}

// NewTaskList 创建任务列表（对外导出）
func NewTaskList(opts ...Option) *TaskList {
	o := buildOptions(opts)
	if o.name == "" {
		o.name = nextListName()
	}

	l := &TaskList{
		name:  o.name,
		sink:  o.sink,
		tasks: make([]task.Task, 0, len(o.tasks)),
		done:  make(chan struct{}),
	}
	for _, t := range o.tasks {
		if err := l.Add(t); err != nil {
			log.Printf("⚠️ [TaskList:%s] 预置任务失败: %v", l.name, err)
		}
	}
	return l
}

// Name 返回列表名称
func (l *TaskList) Name() string {
	return l.name
}

// Add 追加任务，Process 之后返回 ErrListStarted
func (l *TaskList) Add(t task.Task) error {
	if t == nil {
		return ErrNilTask
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("%s: %w", l.name, ErrListStarted)
	}
	l.tasks = append(l.tasks, t)
	return nil
}

// Process 启动后台goroutine按顺序执行全部任务（对外导出）
// 只能调用一次，重复调用返回 ErrListStarted
func (l *TaskList) Process() error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("%s: %w", l.name, ErrListStarted)
	}
	l.started = true
	tasks := make([]task.Task, len(l.tasks))
	copy(tasks, l.tasks)
	l.mu.Unlock()

	go l.work(tasks)
	return nil
}

// work 依次执行任务，全部完成后同步投递一次完成事件（内部方法）
func (l *TaskList) work(tasks []task.Task) {
	defer close(l.done)

	startTime := time.Now()
	for _, t := range tasks {
		l.run(t)
	}

	l.mu.Lock()
	l.processed = true
	l.mu.Unlock()

	log.Printf("✅ [TaskList:%s] 全部任务已完成: Count=%d, Duration=%s", l.name, len(tasks), time.Since(startTime))
	l.sink.SubmitAndWait(l.fireJobDone)
}

// run 同步执行单个任务，失败只记录，不中断后续任务
func (l *TaskList) run(t task.Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TaskList:%s] 任务执行panic: Title=%s, Error=%v\n%s", l.name, t.Title(), r, debug.Stack())
		}
	}()
	if err := t.InvokeAndWait(); err != nil {
		log.Printf("⚠️ [TaskList:%s] 任务启动失败: Title=%s, Error=%v", l.name, t.Title(), err)
	}
}

// fireJobDone 按注册逆序通知监听器
func (l *TaskList) fireJobDone() {
	e := &ListEvent{List: l, Timestamp: time.Now()}
	for _, ln := range l.listeners.Reversed() {
		ln.JobDone(e)
	}
}

// IsStarted 是否已调用 Process
func (l *TaskList) IsStarted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

// IsProcessed 是否全部任务已完成
func (l *TaskList) IsProcessed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.processed
}

// Tasks 返回任务副本（按插入顺序）
func (l *TaskList) Tasks() []task.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]task.Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// Len 返回任务数量
func (l *TaskList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tasks)
}

// AwaitTermination 等待批处理完成且完成事件投递完毕
// 未调用 Process 时一直等待到ctx结束
func (l *TaskList) AwaitTermination(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddListener 注册完成监听器，按注册逆序通知
func (l *TaskList) AddListener(ln ListListener) ListenerID {
	return l.listeners.Add(ln)
}

// RemoveListener 注销完成监听器
func (l *TaskList) RemoveListener(id ListenerID) bool {
	return l.listeners.Remove(id)
}
