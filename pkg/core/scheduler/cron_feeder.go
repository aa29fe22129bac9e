// Package scheduler 按Cron表达式周期性地向任务队列投递新任务
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// Factory 每次触发时创建一个新任务，任务只能执行一次
type Factory func() task.Task

// parser 支持秒级精度和 @every 等描述符
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseExpr 校验Cron表达式（对外导出）
func ParseExpr(expr string) error {
	if expr == "" {
		return errors.New("Cron表达式为空")
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("Cron表达式无效: %s: %w", expr, err)
	}
	return nil
}

// CronFeeder 定时投递器（对外导出）
type CronFeeder struct {
	cron  *cron.Cron
	queue *executor.TaskQueue

	mu      sync.RWMutex
	entries map[string]cron.EntryID // name -> cron.EntryID映射
	fired   map[string]int          // name -> 已投递次数
}

// NewCronFeeder 创建定时投递器（对外导出）
func NewCronFeeder(q *executor.TaskQueue) *CronFeeder {
	return &CronFeeder{
		cron:    cron.New(cron.WithParser(parser)),
		queue:   q,
		entries: make(map[string]cron.EntryID),
		fired:   make(map[string]int),
	}
}

// Register 注册定时任务（对外导出）
func (f *CronFeeder) Register(name, expr string, factory Factory) error {
	if name == "" {
		return errors.New("定时任务名称为空")
	}
	if factory == nil {
		return fmt.Errorf("定时任务 %s 未设置任务工厂", name)
	}
	if err := ParseExpr(expr); err != nil {
		return fmt.Errorf("定时任务 %s: %w", name, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[name]; exists {
		return fmt.Errorf("定时任务 %s 已注册", name)
	}

	entryID, err := f.cron.AddFunc(expr, func() { f.trigger(name, factory) })
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}
	f.entries[name] = entryID

	log.Printf("✅ [Cron投递器] 已注册: Name=%s, CronExpr=%s", name, expr)
	return nil
}

// Unregister 取消注册（对外导出）
func (f *CronFeeder) Unregister(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entryID, exists := f.entries[name]
	if !exists {
		return fmt.Errorf("定时任务 %s 未注册", name)
	}
	f.cron.Remove(entryID)
	delete(f.entries, name)

	log.Printf("✅ [Cron投递器] 已取消注册: Name=%s", name)
	return nil
}

// trigger 创建任务并加入队列（内部方法）
func (f *CronFeeder) trigger(name string, factory Factory) {
	t := factory()
	if t == nil {
		log.Printf("⚠️ [Cron投递器] 任务工厂返回nil: Name=%s", name)
		return
	}
	if err := f.queue.Add(t); err != nil {
		if errors.Is(err, executor.ErrQueueStopped) {
			log.Printf("⚠️ [Cron投递器] 队列已停止，跳过投递: Name=%s", name)
		} else {
			log.Printf("❌ [Cron投递器] 投递失败: Name=%s, Error=%v", name, err)
		}
		return
	}

	f.mu.Lock()
	f.fired[name]++
	f.mu.Unlock()
	log.Printf("🕐 [Cron投递器] 已投递任务: Name=%s, Title=%s", name, t.Title())
}

// Start 启动定时投递（对外导出）
func (f *CronFeeder) Start() {
	f.cron.Start()
	log.Println("✅ [Cron投递器] 已启动")
}

// Stop 停止定时投递，等待正在执行的触发完成（对外导出）
func (f *CronFeeder) Stop() {
	<-f.cron.Stop().Done()
	log.Println("✅ [Cron投递器] 已停止")
}

// Registered 返回已注册的定时任务名称（按名称排序）
func (f *CronFeeder) Registered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.entries))
	for name := range f.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fired 返回指定定时任务已投递的次数
func (f *CronFeeder) Fired(name string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fired[name]
}
