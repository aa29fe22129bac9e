package eventbus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// Config 总线配置
type Config struct {
	OutputBuffer  int64 // 订阅者输出通道缓冲
	BlockUntilAck bool  // 发布是否阻塞到订阅者确认，开启后同一订阅者按发布顺序收到消息
	Debug         bool  // Watermill debug日志
	Trace         bool  // Watermill trace日志
}

// Metrics 总线统计
type Metrics struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Bus 基于Watermill GoChannel的进程内事件总线（对外导出）
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	published atomic.Int64
	failed    atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// New 创建事件总线
func New(cfg Config) *Bus {
	logger := watermill.NewStdLogger(cfg.Debug, cfg.Trace)
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.OutputBuffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: cfg.BlockUntilAck,
		},
		logger,
	)
	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish 发布事件记录，没有订阅者时消息被丢弃
func (b *Bus) Publish(topic string, r *Record) error {
	if b.closed.Load() {
		return fmt.Errorf("事件总线已关闭: topic=%s", topic)
	}
	msg, err := r.toMessage()
	if err != nil {
		b.failed.Add(1)
		return err
	}
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.failed.Add(1)
		return fmt.Errorf("发布事件失败: topic=%s, kind=%s, error=%w", topic, r.Kind, err)
	}
	b.published.Add(1)
	return nil
}

// Subscribe 订阅主题，消费者必须对每条消息调用 Ack
// ctx 结束时输出通道关闭
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("订阅失败: topic=%s, error=%w", topic, err)
	}
	return ch, nil
}

// Metrics 返回统计快照
func (b *Bus) Metrics() Metrics {
	return Metrics{Published: b.published.Load(), Failed: b.failed.Load()}
}

// Close 关闭总线，关闭所有订阅通道
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		err = b.pubsub.Close()
	})
	return err
}

// publishOrLog 监听器回调中使用，失败只记录日志
func (b *Bus) publishOrLog(topic string, r *Record) {
	if err := b.Publish(topic, r); err != nil {
		log.Printf("⚠️ [EventBus] %v", err)
	}
}

// WatchQueue 把队列状态事件转发到 TopicQueueEvents
func (b *Bus) WatchQueue(q *executor.TaskQueue) executor.ListenerID {
	return q.AddListener(executor.QueueListenerFunc(func(e *executor.QueueEvent) {
		b.publishOrLog(TopicQueueEvents, NewRecord(e.Kind.String(), e.Queue.Name(), e.Task, e.Timestamp))
	}))
}

// WatchTask 把任务完成事件转发到 TopicTaskEvents
func (b *Bus) WatchTask(t task.Task) task.ListenerID {
	return t.AddListener(task.ListenerFunc(func(e *task.Event) {
		b.publishOrLog(TopicTaskEvents, NewRecord(KindTaskPerformed, e.Task.Title(), e.Task, e.Timestamp))
	}))
}

// WatchList 把批处理完成事件转发到 TopicListEvents
func (b *Bus) WatchList(l *executor.TaskList) executor.ListenerID {
	return l.AddListener(executor.ListListenerFunc(func(e *executor.ListEvent) {
		r := NewRecord(KindJobDone, e.List.Name(), nil, e.Timestamp).
			WithMetadata("task_count", fmt.Sprintf("%d", e.List.Len()))
		b.publishOrLog(TopicListEvents, r)
	}))
}
