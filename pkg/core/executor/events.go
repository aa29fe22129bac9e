package executor

import (
	"time"

	"github.com/LENAX/task-queue/internal/listener"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// EventKind 队列事件类型
type EventKind string

const (
	// 队列控制事件
	EventStarted EventKind = "queue.started" // 队列启动
	EventStopped EventKind = "queue.stopped" // 队列停止

	// 队列状态事件
	EventEmpty   EventKind = "queue.empty"    // 待执行队列变空
	EventIdle    EventKind = "queue.idle"     // 无待执行任务且无运行中任务
	EventNotIdle EventKind = "queue.not_idle" // 由空闲转为忙碌
	EventFilled  EventKind = "queue.filled"   // 待执行队列由空变为非空

	// 任务事件
	EventTaskFetched EventKind = "task.fetched" // 任务出队，即将执行
	EventTaskDone    EventKind = "task.done"    // 任务执行完毕
)

// String 实现fmt.Stringer
func (k EventKind) String() string {
	return string(k)
}

// EventKinds 返回全部队列事件类型
func EventKinds() []EventKind {
	return []EventKind{
		EventStarted, EventStopped,
		EventEmpty, EventIdle, EventNotIdle, EventFilled,
		EventTaskFetched, EventTaskDone,
	}
}

// QueueEvent 队列状态变化事件
type QueueEvent struct {
	Kind      EventKind  // 事件类型
	Queue     *TaskQueue // 事件来源队列
	Task      task.Task  // 关联任务（仅 task.fetched / task.done）
	Timestamp time.Time  // 事件时间
}

// QueueListener 队列事件监听器
type QueueListener interface {
	StateChanged(e *QueueEvent)
}

// QueueListenerFunc 函数适配器
type QueueListenerFunc func(e *QueueEvent)

// StateChanged 实现 QueueListener
func (f QueueListenerFunc) StateChanged(e *QueueEvent) { f(e) }

// ListEvent 批处理列表完成事件
type ListEvent struct {
	List      *TaskList
	Timestamp time.Time
}

// ListListener 批处理列表监听器
type ListListener interface {
	JobDone(e *ListEvent)
}

// ListListenerFunc 函数适配器
type ListListenerFunc func(e *ListEvent)

// JobDone 实现 ListListener
func (f ListListenerFunc) JobDone(e *ListEvent) { f(e) }

// ListenerID 监听器注册ID
type ListenerID = listener.ID
