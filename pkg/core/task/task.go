// Package task 定义单个异步任务的生命周期抽象
package task

import (
	"errors"
	"time"

	"github.com/LENAX/task-queue/internal/listener"
)

// UnknownErrorCode 未指定错误码时的哨兵值
const UnknownErrorCode = -1

// ErrAlreadyStarted 任务重复启动
var ErrAlreadyStarted = errors.New("任务已启动")

// Task 可调度的异步任务接口（对外导出）
// 队列和批处理列表只依赖这组能力，具体任务通过嵌入 *Base[R] 实现
type Task interface {
	// ID 任务唯一标识
	ID() string
	// Title 任务标题
	Title() string
	// SetTitle 设置任务标题
	SetTitle(title string)
	// Description 任务描述（可为空）
	Description() string

	// Invoke 在新goroutine中执行任务，立即返回
	Invoke() error
	// InvokeAndWait 在当前goroutine执行任务，并等待完成通知投递完毕
	InvokeAndWait() error
	// Stop 请求协作式终止，由具体任务决定如何响应
	Stop()

	IsStarted() bool
	Done() bool
	DoneWithErrors() bool
	ErrorCode() int
	ErrorMessage() string
	ErrorDetails() string
	// ResultValue 以any形式返回结果，类型化结果见 Base[R].Result
	ResultValue() any

	AddListener(l Listener) ListenerID
	RemoveListener(id ListenerID) bool
}

// ListenerID 监听器注册ID
type ListenerID = listener.ID

// Event 任务完成事件
type Event struct {
	Task      Task      // 完成的任务
	Timestamp time.Time // 事件时间
}

// Listener 任务完成监听器
type Listener interface {
	TaskPerformed(e *Event)
}

// ListenerFunc 函数适配器
type ListenerFunc func(e *Event)

// TaskPerformed 实现 Listener
func (f ListenerFunc) TaskPerformed(e *Event) { f(e) }
