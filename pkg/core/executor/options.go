package executor

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/LENAX/task-queue/pkg/core/dispatch"
	"github.com/LENAX/task-queue/pkg/core/task"
)

var (
	// ErrQueueStopped 队列已停止，不再接收任务
	ErrQueueStopped = errors.New("队列已停止")
	// ErrQueueRunning 队列已在运行
	ErrQueueRunning = errors.New("队列已在运行")
	// ErrWorkerActive 队列已停止但工作goroutine仍在收尾
	ErrWorkerActive = errors.New("队列工作goroutine尚未退出")
	// ErrListStarted 任务列表已开始处理
	ErrListStarted = errors.New("任务列表已启动")
	// ErrNilTask 任务为空
	ErrNilTask = errors.New("任务不能为空")
)

// 默认命名序号（进程级）
var (
	queueSerial atomic.Int64
	listSerial  atomic.Int64
)

func nextQueueName() string {
	return fmt.Sprintf("TaskQueue-%d", queueSerial.Add(1))
}

func nextListName() string {
	return fmt.Sprintf("TaskList-%d", listSerial.Add(1))
}

// options 队列/列表的内部配置选项
type options struct {
	name  string
	sink  dispatch.Sink
	tasks []task.Task
}

// Option 配置选项函数类型
type Option func(*options)

// WithName 设置名称（默认 TaskQueue-<n> / TaskList-<n>）
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithSink 设置通知投递Sink（默认 dispatch.Shared()）
func WithSink(sink dispatch.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithTasks 预置任务，按给定顺序加入
func WithTasks(tasks ...task.Task) Option {
	return func(o *options) {
		o.tasks = append(o.tasks, tasks...)
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = dispatch.Shared()
	}
	return o
}
