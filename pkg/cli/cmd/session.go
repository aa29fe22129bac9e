package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/LENAX/task-queue/pkg/cli/output"
	"github.com/LENAX/task-queue/pkg/config"
	"github.com/LENAX/task-queue/pkg/core/cache"
	"github.com/LENAX/task-queue/pkg/core/dispatch"
	"github.com/LENAX/task-queue/pkg/core/eventbus"
	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// session 一次命令执行共享的组件
type session struct {
	cfg  *config.Config
	out  io.Writer
	json bool

	sink    *dispatch.Dispatcher
	printer *output.EventPrinter
	bus     *eventbus.Bus
	results *cache.MemoryCache

	streamCancel context.CancelFunc
	streamDone   chan struct{}

	mu     sync.Mutex
	tasks  []task.Task
	serial int
}

// newSession 按配置创建通知分发器、事件总线和结果缓存
func newSession(cfg *config.Config, out io.Writer, jsonOutput bool) (*session, error) {
	tq := cfg.TaskQueue
	s := &session{
		cfg:  cfg,
		out:  out,
		json: jsonOutput,
		sink: dispatch.NewDispatcher(tq.Dispatcher.Name),
	}
	if !jsonOutput {
		s.printer = output.NewEventPrinter(out)
	}

	// 事件总线只服务于JSON事件流，没有订阅者时不创建
	if tq.EventBus.Enabled && jsonOutput {
		s.bus = eventbus.New(eventbus.Config{
			OutputBuffer:  tq.EventBus.OutputBuffer,
			BlockUntilAck: true,
			Debug:         cfg.IsDebug(),
			Trace:         tq.EventBus.Trace,
		})
		if err := s.streamEvents(); err != nil {
			s.close()
			return nil, err
		}
	}

	if tq.Cache.Enabled {
		s.results = cache.NewMemoryCache(tq.Cache.DefaultTTL, tq.Cache.CleanInterval)
	}
	return s, nil
}

// streamEvents 订阅队列、任务和列表事件并按发布顺序以JSON逐行输出
func (s *session) streamEvents() error {
	ctx, cancel := context.WithCancel(context.Background())
	topics := []string{eventbus.TopicQueueEvents, eventbus.TopicTaskEvents, eventbus.TopicListEvents}
	channels := make([]<-chan *message.Message, 0, len(topics))
	for _, topic := range topics {
		ch, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			return err
		}
		channels = append(channels, ch)
	}

	s.streamCancel = cancel
	s.streamDone = make(chan struct{})

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch <-chan *message.Message) {
			defer wg.Done()
			for msg := range ch {
				s.printRecord(msg.Payload)
				msg.Ack()
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(s.streamDone)
	}()
	return nil
}

func (s *session) printRecord(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, string(payload))
}

// newTask 创建演示任务，按 fail_every 周期性模拟失败
func (s *session) newTask(title string) task.Task {
	q := s.cfg.TaskQueue.Queue

	s.mu.Lock()
	s.serial++
	n := s.serial
	s.mu.Unlock()

	fail := q.FailEvery > 0 && n%q.FailEvery == 0
	t := task.New(title, func(b *task.Base[string]) {
		select {
		case <-time.After(q.TaskDuration):
		case <-b.Context().Done():
			b.SetErrorMessage("任务被停止")
			return
		}
		if fail {
			b.SetErrorCode(n)
			b.SetErrorMessage(fmt.Sprintf("模拟失败: #%d", n))
			return
		}
		b.SetResult(fmt.Sprintf("ok #%d", n))
	}, task.WithSink(s.sink), task.WithDescription(fmt.Sprintf("演示任务 #%d", n)))

	if s.bus != nil {
		s.bus.WatchTask(t)
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// watchQueue 挂载打印、总线和缓存监听器
func (s *session) watchQueue(q *executor.TaskQueue) {
	if s.printer != nil {
		q.AddListener(s.printer)
	}
	if s.bus != nil {
		s.bus.WatchQueue(q)
	}
	if s.results != nil {
		q.AddListener(cache.NewRecorder(s.results, 0))
	}
}

// watchList 挂载打印、总线和缓存监听器
func (s *session) watchList(l *executor.TaskList) {
	if s.printer != nil {
		l.AddListener(s.printer)
	}
	if s.bus != nil {
		s.bus.WatchList(l)
	}
	if s.results != nil {
		rec := cache.NewRecorder(s.results, 0)
		for _, t := range l.Tasks() {
			t.AddListener(rec)
		}
	}
}

// snapshots 返回全部任务的状态，开启缓存时优先读取缓存
func (s *session) snapshots() []task.Snapshot {
	s.mu.Lock()
	tasks := make([]task.Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	snaps := make([]task.Snapshot, 0, len(tasks))
	for _, t := range tasks {
		if s.results != nil {
			if snap, ok := s.results.Get(t.ID()); ok {
				snaps = append(snaps, snap)
				continue
			}
		}
		snaps = append(snaps, task.Capture(t))
	}
	return snaps
}

// report 输出任务汇总
func (s *session) report() error {
	// 等待已提交的通知全部投递
	s.sink.SubmitAndWait(func() {})
	snaps := s.snapshots()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.json {
		return output.PrintJSON(s.out, snaps)
	}

	failed := 0
	for _, snap := range snaps {
		if snap.DoneWithErrors {
			failed++
		}
	}
	fmt.Fprintln(s.out)
	output.TaskTable(snaps).Render(s.out)
	if failed > 0 {
		output.Warning(s.out, "共 %d 个任务，%d 个失败", len(snaps), failed)
	} else {
		output.Success(s.out, "共 %d 个任务，全部成功", len(snaps))
	}
	return nil
}

// close 排空通知后依次关闭各组件
func (s *session) close() {
	s.sink.Close()
	if s.streamCancel != nil {
		s.streamCancel()
		<-s.streamDone
	}
	if s.bus != nil {
		m := s.bus.Metrics()
		log.Printf("✅ [CLI] 事件总线统计: published=%d, failed=%d", m.Published, m.Failed)
		if err := s.bus.Close(); err != nil {
			log.Printf("⚠️ [CLI] 关闭事件总线失败: %v", err)
		}
	}
	if s.results != nil {
		s.results.Close()
	}
}
