package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-queue/pkg/core/dispatch"
)

func newTestSink(t *testing.T) *dispatch.Dispatcher {
	d := dispatch.NewDispatcher(t.Name())
	t.Cleanup(d.Close)
	return d
}

func TestNew_Defaults(t *testing.T) {
	tk := New[int]("compute", nil, WithSink(newTestSink(t)), WithDescription("adds numbers"))

	assert.NotEmpty(t, tk.ID())
	assert.Equal(t, "compute", tk.Title())
	assert.Equal(t, "adds numbers", tk.Description())
	assert.Equal(t, UnknownErrorCode, tk.ErrorCode())
	assert.False(t, tk.IsStarted())
	assert.False(t, tk.Done())
	assert.False(t, tk.DoneWithErrors())
	assert.Zero(t, tk.Result())

	custom := New[int]("x", nil, WithID("task-1"), WithSink(newTestSink(t)))
	assert.Equal(t, "task-1", custom.ID())
}

func TestInvokeAndWait_RunsBodyAndNotifiesBeforeReturn(t *testing.T) {
	sink := newTestSink(t)
	tk := New("sum", func(b *Base[int]) {
		b.SetResult(1 + 2)
	}, WithSink(sink))

	notified := false
	var doneAtNotify bool
	tk.AddListener(ListenerFunc(func(e *Event) {
		notified = true
		doneAtNotify = e.Task.Done()
	}))

	require.NoError(t, tk.InvokeAndWait())

	assert.True(t, notified, "InvokeAndWait 返回前应完成通知投递")
	assert.True(t, doneAtNotify, "通知时任务应已完成")
	assert.True(t, tk.IsStarted())
	assert.True(t, tk.Done())
	assert.Equal(t, 3, tk.Result())
	assert.Equal(t, 3, tk.ResultValue())
}

func TestInvokeAndWait_SecondCallFails(t *testing.T) {
	var runs int32
	tk := New("once", func(b *Base[int32]) {
		b.SetResult(atomic.AddInt32(&runs, 1))
	}, WithSink(newTestSink(t)))

	require.NoError(t, tk.InvokeAndWait())
	err := tk.InvokeAndWait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyStarted))

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), tk.Result())
}

func TestInvoke_RunsAsynchronously(t *testing.T) {
	release := make(chan struct{})
	tk := New("async", func(b *Base[string]) {
		<-release
		b.SetResult("ok")
	}, WithSink(newTestSink(t)))

	done := make(chan *Event, 1)
	tk.AddListener(ListenerFunc(func(e *Event) { done <- e }))

	require.NoError(t, tk.Invoke())
	assert.True(t, tk.IsStarted())
	assert.False(t, tk.Done())

	// 重复启动同步失败
	assert.ErrorIs(t, tk.Invoke(), ErrAlreadyStarted)
	assert.ErrorIs(t, tk.InvokeAndWait(), ErrAlreadyStarted)

	close(release)
	select {
	case e := <-done:
		assert.Same(t, tk, e.Task)
		assert.Equal(t, "ok", tk.Result())
	case <-time.After(2 * time.Second):
		t.Fatal("等待完成通知超时")
	}
}

func TestErrorRoundTrip(t *testing.T) {
	tk := New("failing", func(b *Base[any]) {
		b.SetErrorMessage("x")
		b.SetErrorCode(42)
		b.SetErrorDetails("stack")
	}, WithSink(newTestSink(t)))

	require.NoError(t, tk.InvokeAndWait())

	assert.True(t, tk.Done())
	assert.True(t, tk.DoneWithErrors())
	assert.Equal(t, "x", tk.ErrorMessage())
	assert.Equal(t, 42, tk.ErrorCode())
	assert.Equal(t, "stack", tk.ErrorDetails())
}

func TestSetError(t *testing.T) {
	tk := New[int]("err", func(b *Base[int]) {
		b.SetError(nil)
		b.SetError(errors.New("boom"))
	}, WithSink(newTestSink(t)))

	require.NoError(t, tk.InvokeAndWait())
	assert.True(t, tk.DoneWithErrors())
	assert.Equal(t, "boom", tk.ErrorMessage())
	assert.Equal(t, UnknownErrorCode, tk.ErrorCode())
}

func TestListeners_ReverseRegistrationOrder(t *testing.T) {
	tk := New[int]("ordered", nil, WithSink(newTestSink(t)))

	var order []string
	tk.AddListener(ListenerFunc(func(*Event) { order = append(order, "first") }))
	tk.AddListener(ListenerFunc(func(*Event) { order = append(order, "second") }))
	tk.AddListener(ListenerFunc(func(*Event) { order = append(order, "third") }))

	require.NoError(t, tk.InvokeAndWait())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestListeners_RemoveDuringNotification(t *testing.T) {
	tk := New[int]("self-removing", nil, WithSink(newTestSink(t)))

	var calls int
	var id ListenerID
	id = tk.AddListener(ListenerFunc(func(*Event) {
		calls++
		assert.True(t, tk.RemoveListener(id))
	}))
	tk.AddListener(ListenerFunc(func(*Event) { calls++ }))

	require.NoError(t, tk.InvokeAndWait())
	assert.Equal(t, 2, calls)
	assert.False(t, tk.RemoveListener(id))
}

func TestPanicInBody_RecordedAsTaskError(t *testing.T) {
	tk := New[int]("panics", func(*Base[int]) {
		panic("bad input")
	}, WithSink(newTestSink(t)))

	notified := false
	tk.AddListener(ListenerFunc(func(*Event) { notified = true }))

	require.NotPanics(t, func() {
		require.NoError(t, tk.InvokeAndWait())
	})
	assert.True(t, notified)
	assert.True(t, tk.Done())
	assert.True(t, tk.DoneWithErrors())
	assert.Equal(t, "panic: bad input", tk.ErrorMessage())
	assert.NotEmpty(t, tk.ErrorDetails())
}

func TestStop_IsCooperative(t *testing.T) {
	started := make(chan struct{})
	tk := New("cancellable", func(b *Base[string]) {
		close(started)
		select {
		case <-b.Context().Done():
			b.SetResult("stopped")
		case <-time.After(5 * time.Second):
			b.SetResult("timeout")
		}
	}, WithSink(newTestSink(t)))

	var wg sync.WaitGroup
	wg.Add(1)
	tk.AddListener(ListenerFunc(func(*Event) { wg.Done() }))

	require.NoError(t, tk.Invoke())
	<-started
	tk.Stop()
	assert.True(t, tk.StopRequested())
	wg.Wait()

	assert.Equal(t, "stopped", tk.Result())
	assert.False(t, tk.DoneWithErrors())
}

// countingTask 嵌入 Base 的具体任务
type countingTask struct {
	*Base[int]
	n int
}

func newCountingTask(n int, sink dispatch.Sink) *countingTask {
	c := &countingTask{n: n}
	c.Base = New("count", c.run, WithSink(sink))
	c.Bind(c)
	return c
}

func (c *countingTask) run(b *Base[int]) {
	total := 0
	for i := 1; i <= c.n; i++ {
		total += i
	}
	b.SetResult(total)
}

func TestEmbeddedTask_EventCarriesOwner(t *testing.T) {
	c := newCountingTask(4, newTestSink(t))

	var got Task
	c.AddListener(ListenerFunc(func(e *Event) { got = e.Task }))

	require.NoError(t, c.InvokeAndWait())
	assert.Same(t, c, got)
	assert.Equal(t, 10, c.Result())
}

func TestCapture(t *testing.T) {
	tk := New("snap", func(b *Base[string]) {
		b.SetResult("value")
	}, WithSink(newTestSink(t)), WithID("snap-1"))

	before := Capture(tk)
	assert.Equal(t, "pending", before.Status())

	require.NoError(t, tk.InvokeAndWait())
	after := Capture(tk)

	assert.Equal(t, "snap-1", after.ID)
	assert.Equal(t, "done", after.Status())
	assert.Equal(t, "value", after.Result)
	assert.Equal(t, Snapshot{}, Capture(nil))
}

func TestContext_CarriesTaskID(t *testing.T) {
	var seen string
	tk := New("ctx", func(b *Base[int]) {
		seen, _ = IDFromContext(b.Context())
	}, WithID("task-ctx"), WithSink(newTestSink(t)))

	require.NoError(t, tk.InvokeAndWait())
	assert.Equal(t, "task-ctx", seen)

	_, ok := IDFromContext(context.Background())
	assert.False(t, ok)
}
