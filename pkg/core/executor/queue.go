// Package executor 提供单worker的FIFO任务队列和顺序批处理列表
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

// TaskQueue 单worker FIFO任务队列（对外导出）
// 所有可变状态由 mu 保护；worker执行任务主体时释放锁
type TaskQueue struct {
	name string
	sink dispatch.Sink

	mu      sync.Mutex
	cond    *sync.Cond
	pending []task.Task
	current task.Task

	started   bool
	stopped   bool
	cancelled bool
	idle      bool

	workerDone chan struct{} // 当前worker退出时关闭，未启动过为nil

	listeners listener.Registry[QueueListener]
}

// NewTaskQueue 创建任务队列（对外导出）
func NewTaskQueue(opts ...Option) *TaskQueue {
	o := buildOptions(opts)
	if o.name == "" {
		o.name = nextQueueName()
	}

	q := &TaskQueue{
		name:    o.name,
		sink:    o.sink,
		pending: make([]task.Task, 0, len(o.tasks)),
		idle:    true,
	}
	q.cond = sync.NewCond(&q.mu)

	for _, t := range o.tasks {
		if err := q.Add(t); err != nil {
			log.Printf("⚠️ [TaskQueue:%s] 预置任务失败: %v", q.name, err)
		}
	}
	return q
}

// Name 返回队列名称
func (q *TaskQueue) Name() string {
	return q.name
}

// Add 将任务加入队尾（对外导出）
// 队列停止后返回 ErrQueueStopped
func (q *TaskQueue) Add(t task.Task) error {
	if t == nil {
		return ErrNilTask
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	}

	q.pending = append(q.pending, t)
	if len(q.pending) == 1 {
		q.fireLocked(EventFilled, nil)
	}
	if q.idle {
		q.idle = false
		q.fireLocked(EventNotIdle, nil)
	}

	q.cond.Broadcast()
	return nil
}

// Start 启动worker（对外导出）
// 运行中返回 ErrQueueRunning；停止后重新启动会清除停止和取消标记
func (q *TaskQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started && !q.stopped {
		return fmt.Errorf("%s: %w", q.name, ErrQueueRunning)
	}
	if q.workerDone != nil {
		select {
		case <-q.workerDone:
		default:
			return fmt.Errorf("%s: %w", q.name, ErrWorkerActive)
		}
	}

	q.stopped = false
	q.cancelled = false
	q.started = true
	q.fireLocked(EventStarted, nil)

	done := make(chan struct{})
	q.workerDone = done
	go q.work(done)

	log.Printf("✅ [TaskQueue:%s] 已启动", q.name)
	return nil
}

// Stop 停止接收新任务，worker处理完剩余任务后退出（对外导出）
// 不阻塞，需要等待退出时使用 AwaitTermination
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopLocked()
}

// Cancel 停止队列并放弃剩余任务（对外导出）
// 正在执行的任务会执行完毕，未执行的任务保留在待执行队列中
func (q *TaskQueue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancelled = true
	q.stopLocked()
}

func (q *TaskQueue) stopLocked() {
	q.stopped = true
	q.fireLocked(EventStopped, nil)
	q.cond.Broadcast()
}

// AwaitTermination 等待当前worker退出（对外导出）
// 从未启动时立即返回
func (q *TaskQueue) AwaitTermination(ctx context.Context) error {
	q.mu.Lock()
	done := q.workerDone
	q.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// work worker主循环（内部方法）
func (q *TaskQueue) work(done chan struct{}) {
	defer close(done)

	for {
		q.drain()

		q.mu.Lock()
		if q.stopped {
			finish := !q.cancelled && len(q.pending) > 0
			q.mu.Unlock()
			if finish {
				q.drain()
			}
			log.Printf("✅ [TaskQueue:%s] worker已退出", q.name)
			return
		}
		for len(q.pending) == 0 && !q.stopped {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// drain 依次执行待执行任务直到队列为空或被取消（内部方法）
func (q *TaskQueue) drain() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}

	for !q.cancelled {
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.current = t

		q.fireLocked(EventTaskFetched, t)
		if len(q.pending) == 0 {
			q.fireLocked(EventEmpty, nil)
		}
		q.mu.Unlock()

		q.run(t)

		q.mu.Lock()
		q.fireLocked(EventTaskDone, t)
		q.current = nil

		if len(q.pending) == 0 {
			q.idle = true
			q.fireLocked(EventIdle, nil)
			q.mu.Unlock()
			return
		}
	}
	q.mu.Unlock()
}

// run 同步执行单个任务，任务自身的故障不影响队列
func (q *TaskQueue) run(t task.Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TaskQueue:%s] 任务执行panic: Title=%s, Error=%v\n%s", q.name, t.Title(), r, debug.Stack())
		}
	}()
	if err := t.InvokeAndWait(); err != nil {
		log.Printf("⚠️ [TaskQueue:%s] 任务启动失败: Title=%s, Error=%v", q.name, t.Title(), err)
	}
}

// IsStarted 是否启动过
func (q *TaskQueue) IsStarted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

// IsRunning 已启动且未停止
func (q *TaskQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started && !q.stopped
}

// IsStopped 是否已停止
func (q *TaskQueue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// IsCancelled 是否已取消
func (q *TaskQueue) IsCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// IsEmpty 待执行队列是否为空（不代表没有运行中的任务）
func (q *TaskQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// IsIdle 无待执行任务且无运行中任务
func (q *TaskQueue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// PendingTaskCount 返回待执行任务数
func (q *TaskQueue) PendingTaskCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// PendingTasks 返回待执行任务的副本
func (q *TaskQueue) PendingTasks() []task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]task.Task, len(q.pending))
	copy(out, q.pending)
	return out
}

// RunningTask 返回正在执行的任务，没有时为nil
func (q *TaskQueue) RunningTask() task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// RemovePendingTasks 清空待执行队列，不影响正在执行的任务
func (q *TaskQueue) RemovePendingTasks() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return
	}
	q.pending = make([]task.Task, 0)
	q.afterRemovalLocked()
}

// RemoveTask 按ID移除待执行任务，不存在时返回false
func (q *TaskQueue) RemoveTask(t task.Task) bool {
	if t == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, p := range q.pending {
		if p.ID() != t.ID() {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		if len(q.pending) == 0 {
			q.afterRemovalLocked()
		}
		return true
	}
	return false
}

// afterRemovalLocked 移除导致队列变空时维护空闲状态
func (q *TaskQueue) afterRemovalLocked() {
	q.fireLocked(EventEmpty, nil)
	if q.current == nil && !q.idle {
		q.idle = true
		q.fireLocked(EventIdle, nil)
	}
}

// AddListener 注册队列事件监听器，按注册顺序通知
func (q *TaskQueue) AddListener(l QueueListener) ListenerID {
	return q.listeners.Add(l)
}

// RemoveListener 注销队列事件监听器
func (q *TaskQueue) RemoveListener(id ListenerID) bool {
	return q.listeners.Remove(id)
}

// fireLocked 异步投递队列事件（调用方持有 mu）
// Sink.Submit 不阻塞，投递顺序即事件产生顺序；监听器在Sink上下文中执行，不持有队列锁
func (q *TaskQueue) fireLocked(kind EventKind, t task.Task) {
	e := &QueueEvent{
		Kind:      kind,
		Queue:     q,
		Task:      t,
		Timestamp: time.Now(),
	}
	q.sink.Submit(func() {
		for _, l := range q.listeners.Snapshot() {
			l.StateChanged(e)
		}
	})
}

// String 实现fmt.Stringer
func (q *TaskQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("TaskQueue(%s, pending=%d, running=%t, idle=%t)", q.name, len(q.pending), q.started && !q.stopped, q.idle)
}
