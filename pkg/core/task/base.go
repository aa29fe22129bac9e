package task

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LENAX/task-queue/internal/listener"
	"github.com/LENAX/task-queue/pkg/core/dispatch"
)

// options 内部配置选项
type options struct {
	id          string
	description string
	sink        dispatch.Sink
	parent      context.Context
}

// Option 配置选项函数类型
type Option func(*options)

// WithID 指定任务ID（默认生成UUID）
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// WithDescription 设置任务描述
func WithDescription(desc string) Option {
	return func(o *options) {
		o.description = desc
	}
}

// WithSink 设置完成通知的投递Sink（默认 dispatch.Shared()）
func WithSink(sink dispatch.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithContext 设置父Context，父Context取消等同于调用Stop
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}

// Base 任务生命周期的通用实现（对外导出）
// 具体任务可以直接使用 New 构造，也可以嵌入 *Base[R] 并调用 Bind
type Base[R any] struct {
	id   string
	body func(t *Base[R])
	sink dispatch.Sink
	self Task

	ctx           context.Context
	cancel        context.CancelFunc
	stopRequested atomic.Bool

	mu             sync.RWMutex
	title          string
	description    string
	started        bool
	done           bool
	doneWithErrors bool
	errorCode      int
	errorMessage   string
	errorDetails   string
	result         R

	listeners listener.Registry[Listener]
}

// New 创建任务（对外导出）
// body 为任务主体，执行期间可设置结果和错误信息，为nil时任务直接完成
func New[R any](title string, body func(t *Base[R]), opts ...Option) *Base[R] {
	o := &options{
		id:     uuid.NewString(),
		parent: context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = dispatch.Shared()
	}

	ctx, cancel := context.WithCancel(WithTaskID(o.parent, o.id))
	b := &Base[R]{
		id:          o.id,
		body:        body,
		sink:        o.sink,
		ctx:         ctx,
		cancel:      cancel,
		title:       title,
		description: o.description,
		errorCode:   UnknownErrorCode,
	}
	b.self = b
	return b
}

// Bind 设置事件中上报的任务对象
// 嵌入 *Base[R] 的类型应在构造后调用 Bind(自身)，使监听器拿到外层类型
func (b *Base[R]) Bind(owner Task) {
	if owner != nil {
		b.self = owner
	}
}

// ID 返回任务ID
func (b *Base[R]) ID() string { return b.id }

// Title 返回任务标题
func (b *Base[R]) Title() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.title
}

// SetTitle 设置任务标题
func (b *Base[R]) SetTitle(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = title
}

// Description 返回任务描述
func (b *Base[R]) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription 设置任务描述
func (b *Base[R]) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// Context 返回任务Context，Stop后被取消
func (b *Base[R]) Context() context.Context { return b.ctx }

// Stop 请求协作式终止，不会中断正在执行的主体
func (b *Base[R]) Stop() {
	b.stopRequested.Store(true)
	b.cancel()
}

// StopRequested 是否已请求终止
func (b *Base[R]) StopRequested() bool {
	return b.stopRequested.Load() || (b.ctx.Err() != nil && !b.Done())
}

// Invoke 在新goroutine中执行任务（对外导出）
// 重复启动时同步返回 ErrAlreadyStarted
func (b *Base[R]) Invoke() error {
	if err := b.begin(); err != nil {
		return err
	}
	go b.execute()
	return nil
}

// InvokeAndWait 在当前goroutine执行任务，等待完成通知投递后返回（对外导出）
func (b *Base[R]) InvokeAndWait() error {
	if err := b.begin(); err != nil {
		return err
	}
	b.execute()
	return nil
}

// begin 原子地将任务标记为已启动
func (b *Base[R]) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("%s: %w", b.title, ErrAlreadyStarted)
	}
	b.started = true
	return nil
}

// execute 执行主体、标记完成、同步投递完成通知
func (b *Base[R]) execute() {
	b.runBody()

	b.mu.Lock()
	b.done = true
	b.mu.Unlock()
	b.cancel()

	b.sink.SubmitAndWait(b.fireTaskPerformed)
}

// runBody 执行任务主体，panic转换为任务错误
func (b *Base[R]) runBody() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [Task] 任务主体panic: ID=%s, Title=%s, Error=%v", b.id, b.Title(), r)
			b.mu.Lock()
			b.errorMessage = fmt.Sprintf("panic: %v", r)
			b.errorDetails = string(debug.Stack())
			b.doneWithErrors = true
			b.mu.Unlock()
		}
	}()
	if b.body != nil {
		b.body(b)
	}
}

// fireTaskPerformed 按注册逆序通知监听器
func (b *Base[R]) fireTaskPerformed() {
	e := &Event{Task: b.self, Timestamp: time.Now()}
	for _, l := range b.listeners.Reversed() {
		l.TaskPerformed(e)
	}
}

// IsStarted 是否已启动
func (b *Base[R]) IsStarted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

// Done 是否已完成
func (b *Base[R]) Done() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.done
}

// DoneWithErrors 是否以错误结束
func (b *Base[R]) DoneWithErrors() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.doneWithErrors
}

// SetDoneWithErrors 设置错误标记
func (b *Base[R]) SetDoneWithErrors(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doneWithErrors = v
}

// ErrorCode 返回错误码，未设置时为 UnknownErrorCode
func (b *Base[R]) ErrorCode() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errorCode
}

// SetErrorCode 设置错误码
func (b *Base[R]) SetErrorCode(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorCode = code
}

// ErrorMessage 返回错误信息
func (b *Base[R]) ErrorMessage() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errorMessage
}

// SetErrorMessage 设置错误信息，同时标记为以错误结束
func (b *Base[R]) SetErrorMessage(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorMessage = msg
	b.doneWithErrors = true
}

// ErrorDetails 返回错误详情
func (b *Base[R]) ErrorDetails() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errorDetails
}

// SetErrorDetails 设置错误详情
func (b *Base[R]) SetErrorDetails(details string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorDetails = details
}

// SetError 用error设置错误信息，nil时忽略
func (b *Base[R]) SetError(err error) {
	if err == nil {
		return
	}
	b.SetErrorMessage(err.Error())
}

// Result 返回类型化结果
func (b *Base[R]) Result() R {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result
}

// SetResult 设置结果
func (b *Base[R]) SetResult(result R) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = result
}

// ResultValue 实现 Task
func (b *Base[R]) ResultValue() any {
	return b.Result()
}

// AddListener 注册完成监听器
func (b *Base[R]) AddListener(l Listener) ListenerID {
	return b.listeners.Add(l)
}

// RemoveListener 注销完成监听器
func (b *Base[R]) RemoveListener(id ListenerID) bool {
	return b.listeners.Remove(id)
}

// String 实现fmt.Stringer
func (b *Base[R]) String() string {
	return fmt.Sprintf("Task(%s, %s)", b.Title(), b.id)
}
