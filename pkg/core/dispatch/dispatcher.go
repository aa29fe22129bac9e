// Package dispatch 提供任务通知的投递上下文（通知 Sink）
package dispatch

import (
	"bytes"
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
)

// Sink 通知投递接口（对外导出）
// Submit 投递后立即返回，且不能在调用方goroutine中同步执行回调（队列持锁投递事件）；
// SubmitAndWait 阻塞到回调在通知上下文中执行完毕
type Sink interface {
	Submit(fn func())
	SubmitAndWait(fn func())
}

// Stats 分发器运行统计
type Stats struct {
	Submitted int64 `json:"submitted"`
	Executed  int64 `json:"executed"`
	Panicked  int64 `json:"panicked"`
	Pending   int   `json:"pending"`
}

// callback 待执行的回调，done 非空时执行后关闭
type callback struct {
	fn   func()
	done chan struct{}
}

// Dispatcher 单goroutine通知分发器（对外导出）
// 所有回调按提交顺序在同一个goroutine中串行执行，相当于UI线程
type Dispatcher struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	pending []callback
	closed  bool

	submitted int64 // atomic
	executed  int64 // atomic
	panicked  int64 // atomic

	loopID atomic.Uint64 // 分发goroutine的ID
	exited chan struct{}
}

// NewDispatcher 创建并启动分发器（对外导出）
func NewDispatcher(name string) *Dispatcher {
	if name == "" {
		name = "dispatcher"
	}
	d := &Dispatcher{
		name:    name,
		pending: make([]callback, 0, 16),
		exited:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Name 返回分发器名称
func (d *Dispatcher) Name() string {
	return d.name
}

// Submit 异步投递回调，不等待执行
func (d *Dispatcher) Submit(fn func()) {
	if fn == nil {
		return
	}
	atomic.AddInt64(&d.submitted, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("⚠️ [Dispatcher:%s] 已关闭，回调在独立goroutine中执行", d.name)
		go d.run(fn)
		return
	}
	d.pending = append(d.pending, callback{fn: fn})
	d.cond.Signal()
	d.mu.Unlock()
}

// SubmitAndWait 投递回调并阻塞到执行完毕
// 回调中的panic会被记录并吞掉，不会传递给调用方
// 在同一分发器的回调中调用时直接同步执行
func (d *Dispatcher) SubmitAndWait(fn func()) {
	if fn == nil {
		return
	}
	atomic.AddInt64(&d.submitted, 1)

	if d.inLoop() {
		log.Printf("⚠️ [Dispatcher:%s] 回调中调用SubmitAndWait，直接同步执行", d.name)
		d.run(fn)
		return
	}

	done := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("⚠️ [Dispatcher:%s] 已关闭，回调在调用方goroutine中执行", d.name)
		d.run(fn)
		return
	}
	d.pending = append(d.pending, callback{fn: fn, done: done})
	d.cond.Signal()
	d.mu.Unlock()

	<-done
}

// Close 停止接收新回调，执行完已排队的回调后退出（对外导出）
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.exited
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	<-d.exited
}

// Stats 返回运行统计
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	pending := len(d.pending)
	d.mu.Unlock()

	return Stats{
		Submitted: atomic.LoadInt64(&d.submitted),
		Executed:  atomic.LoadInt64(&d.executed),
		Panicked:  atomic.LoadInt64(&d.panicked),
		Pending:   pending,
	}
}

// loop 分发循环（内部方法）
func (d *Dispatcher) loop() {
	defer close(d.exited)
	d.loopID.Store(goroutineID())

	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = make([]callback, 0, 16)
		d.mu.Unlock()

		for _, cb := range batch {
			d.run(cb.fn)
			if cb.done != nil {
				close(cb.done)
			}
		}
	}
}

// run 执行单个回调，panic只记录不传播
func (d *Dispatcher) run(fn func()) {
	defer func() {
		atomic.AddInt64(&d.executed, 1)
		if r := recover(); r != nil {
			atomic.AddInt64(&d.panicked, 1)
			log.Printf("❌ [Dispatcher:%s] 回调执行panic: %v\n%s", d.name, r, debug.Stack())
		}
	}()
	fn()
}

// inLoop 当前goroutine是否为分发goroutine
func (d *Dispatcher) inLoop() bool {
	id := d.loopID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID 从栈信息头部 "goroutine N [" 解析当前goroutine的ID
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// String 实现fmt.Stringer
func (d *Dispatcher) String() string {
	s := d.Stats()
	return fmt.Sprintf("Dispatcher(%s, submitted=%d, executed=%d, pending=%d)", d.name, s.Submitted, s.Executed, s.Pending)
}

var (
	sharedOnce sync.Once
	shared     *Dispatcher
)

// Shared 返回进程级默认分发器，首次调用时创建
// 构造函数未显式传入Sink时使用它
func Shared() *Dispatcher {
	sharedOnce.Do(func() {
		shared = NewDispatcher("shared")
	})
	return shared
}
