package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SubmitPreservesOrder(t *testing.T) {
	d := NewDispatcher("order")
	defer d.Close()

	var mu sync.Mutex
	got := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		i := i
		d.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	// SubmitAndWait 排在所有Submit之后，返回时前面的回调已执行
	d.SubmitAndWait(func() {})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcher_SubmitAndWaitBlocksUntilRun(t *testing.T) {
	d := NewDispatcher("wait")
	defer d.Close()

	ran := false
	d.SubmitAndWait(func() {
		time.Sleep(20 * time.Millisecond)
		ran = true
	})
	assert.True(t, ran)
}

func TestDispatcher_SubmitDoesNotBlock(t *testing.T) {
	d := NewDispatcher("async")
	defer d.Close()

	release := make(chan struct{})
	d.Submit(func() { <-release })

	returned := make(chan struct{})
	go func() {
		d.Submit(func() {})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Submit 在前一个回调阻塞时不应阻塞")
	}
	close(release)
}

func TestDispatcher_PanicIsSwallowed(t *testing.T) {
	d := NewDispatcher("panic")
	defer d.Close()

	assert.NotPanics(t, func() {
		d.SubmitAndWait(func() { panic("listener failure") })
	})

	after := false
	d.SubmitAndWait(func() { after = true })
	assert.True(t, after, "panic之后分发器应继续运行")

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(2), stats.Executed)
}

func TestDispatcher_CloseDrainsPending(t *testing.T) {
	d := NewDispatcher("drain")

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		d.Submit(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	d.Close()

	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()

	// 关闭后在调用方goroutine执行
	ran := false
	d.SubmitAndWait(func() { ran = true })
	assert.True(t, ran)

	// 重复关闭不应阻塞
	d.Close()
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, Shared(), Shared())
	assert.Equal(t, "shared", Shared().Name())
}

func TestDispatcher_SubmitAndWaitFromCallbackRunsInline(t *testing.T) {
	d := NewDispatcher("reentrant")
	defer d.Close()

	var order []string
	finished := make(chan struct{})
	d.Submit(func() {
		order = append(order, "outer")
		d.SubmitAndWait(func() { order = append(order, "inner") })
		order = append(order, "after")
		close(finished)
	})

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("回调中调用 SubmitAndWait 不应等待自身")
	}
	assert.Equal(t, []string{"outer", "inner", "after"}, order)
	assert.False(t, d.inLoop(), "测试goroutine不是分发goroutine")
}

func TestGoroutineID_DiffersAcrossGoroutines(t *testing.T) {
	mine := goroutineID()
	require.NotZero(t, mine)
	assert.Equal(t, mine, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, mine, <-other)
}
