package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-queue/pkg/core/dispatch"
	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

func newTestQueue(t *testing.T) (*executor.TaskQueue, *dispatch.Dispatcher) {
	sink := dispatch.NewDispatcher(t.Name())
	t.Cleanup(sink.Close)
	q := executor.NewTaskQueue(executor.WithSink(sink))
	return q, sink
}

func counterFactory(sink dispatch.Sink, runs *atomic.Int32) Factory {
	return func() task.Task {
		return task.New("tick", func(b *task.Base[int]) {
			b.SetResult(int(runs.Add(1)))
		}, task.WithSink(sink))
	}
}

func TestParseExpr(t *testing.T) {
	assert.NoError(t, ParseExpr("*/5 * * * * *"))
	assert.NoError(t, ParseExpr("@every 1m"))
	assert.Error(t, ParseExpr(""))
	assert.Error(t, ParseExpr("* * *"))
}

func TestCronFeeder_RegisterAndUnregister(t *testing.T) {
	q, sink := newTestQueue(t)
	f := NewCronFeeder(q)
	var runs atomic.Int32

	require.NoError(t, f.Register("b-job", "@every 1h", counterFactory(sink, &runs)))
	require.NoError(t, f.Register("a-job", "0 0 * * * *", counterFactory(sink, &runs)))
	assert.Equal(t, []string{"a-job", "b-job"}, f.Registered())

	assert.Error(t, f.Register("a-job", "@every 1h", counterFactory(sink, &runs)), "重复注册应失败")
	assert.Error(t, f.Register("bad", "not a cron", counterFactory(sink, &runs)))
	assert.Error(t, f.Register("", "@every 1h", counterFactory(sink, &runs)))
	assert.Error(t, f.Register("nil-factory", "@every 1h", nil))

	require.NoError(t, f.Unregister("a-job"))
	assert.Error(t, f.Unregister("a-job"))
	assert.Equal(t, []string{"b-job"}, f.Registered())
}

func TestCronFeeder_TriggerEnqueues(t *testing.T) {
	q, sink := newTestQueue(t)
	f := NewCronFeeder(q)
	var runs atomic.Int32
	factory := counterFactory(sink, &runs)

	f.trigger("manual", factory)
	f.trigger("manual", factory)
	assert.Equal(t, 2, q.PendingTaskCount())
	assert.Equal(t, 2, f.Fired("manual"))

	require.NoError(t, q.Start())
	q.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.AwaitTermination(ctx))
	assert.Equal(t, int32(2), runs.Load())

	// 队列停止后触发被跳过
	f.trigger("manual", factory)
	assert.Equal(t, 2, f.Fired("manual"))
	assert.Equal(t, 0, q.PendingTaskCount())
}

func TestCronFeeder_NilTaskSkipped(t *testing.T) {
	q, _ := newTestQueue(t)
	f := NewCronFeeder(q)

	f.trigger("nil", func() task.Task { return nil })
	assert.Equal(t, 0, f.Fired("nil"))
	assert.True(t, q.IsEmpty())
}

func TestCronFeeder_FiresOnSchedule(t *testing.T) {
	q, sink := newTestQueue(t)
	f := NewCronFeeder(q)
	var runs atomic.Int32

	require.NoError(t, q.Start())
	require.NoError(t, f.Register("every-second", "* * * * * *", counterFactory(sink, &runs)))
	f.Start()
	defer f.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, f.Fired("every-second"), 1)
}
