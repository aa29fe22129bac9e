// Package cache 按任务ID缓存已完成任务的最终状态
package cache

import (
	"sync"
	"time"

	"github.com/LENAX/task-queue/pkg/core/task"
)

// 默认参数
const (
	DefaultTTL           = 10 * time.Minute
	DefaultCleanInterval = 1 * time.Minute
)

// ResultCache 任务结果缓存接口（对外导出）
type ResultCache interface {
	// Put 写入任务快照，ttl<=0 时使用默认有效期
	Put(snap task.Snapshot, ttl time.Duration)

	// Get 按任务ID读取快照，过期视为不存在
	Get(taskID string) (task.Snapshot, bool)

	// Delete 删除快照
	Delete(taskID string)

	// Len 返回未过期条目数
	Len() int

	// Clear 清空所有缓存
	Clear()
}

// entry 缓存条目（内部使用）
type entry struct {
	snap     task.Snapshot
	expireAt time.Time
}

// MemoryCache 内存TTL缓存实现（对外导出）
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryCache 创建缓存并启动定期清理协程，使用完毕需调用 Close
func NewMemoryCache(defaultTTL, cleanInterval time.Duration) *MemoryCache {
	return newMemoryCache(defaultTTL, cleanInterval, time.Now)
}

func newMemoryCache(defaultTTL, cleanInterval time.Duration, now func() time.Time) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if cleanInterval <= 0 {
		cleanInterval = DefaultCleanInterval
	}
	c := &MemoryCache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
		now:        now,
	}
	go c.cleanupLoop(cleanInterval)
	return c
}

// Put 写入任务快照
func (c *MemoryCache) Put(snap task.Snapshot, ttl time.Duration) {
	if snap.ID == "" {
		return // 空ID，忽略
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.ID] = &entry{snap: snap, expireAt: c.now().Add(ttl)}
}

// Get 读取任务快照
func (c *MemoryCache) Get(taskID string) (task.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[taskID]
	c.mu.RUnlock()

	if !ok {
		return task.Snapshot{}, false
	}
	if c.now().After(e.expireAt) {
		c.mu.Lock()
		// 期间可能已被重新写入
		if cur, ok := c.entries[taskID]; ok && cur == e {
			delete(c.entries, taskID)
		}
		c.mu.Unlock()
		return task.Snapshot{}, false
	}
	return e.snap, true
}

// Delete 删除快照
func (c *MemoryCache) Delete(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, taskID)
}

// Len 返回未过期条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !now.After(e.expireAt) {
			n++
		}
	}
	return n
}

// Clear 清空所有缓存
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Close 停止清理协程，可重复调用
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// purge 删除全部过期条目，返回删除数量
func (c *MemoryCache) purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if now.After(e.expireAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// cleanupLoop 定期清理过期缓存（内部方法）
func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purge()
		case <-c.stop:
			return
		}
	}
}
