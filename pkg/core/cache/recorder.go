package cache

import (
	"time"

	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// Recorder 把完成的任务写入缓存的监听器
// 可同时作为任务监听器和队列监听器使用
type Recorder struct {
	cache ResultCache
	ttl   time.Duration
}

// NewRecorder 创建记录器，ttl<=0 时使用缓存默认有效期
func NewRecorder(c ResultCache, ttl time.Duration) *Recorder {
	return &Recorder{cache: c, ttl: ttl}
}

// TaskPerformed 实现 task.Listener
func (r *Recorder) TaskPerformed(e *task.Event) {
	r.cache.Put(task.Capture(e.Task), r.ttl)
}

// StateChanged 实现 executor.QueueListener，只处理 task.done
func (r *Recorder) StateChanged(e *executor.QueueEvent) {
	if e.Kind != executor.EventTaskDone || e.Task == nil {
		return
	}
	r.cache.Put(task.Capture(e.Task), r.ttl)
}
