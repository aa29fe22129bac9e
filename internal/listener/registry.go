// Package listener 提供并发安全的监听器注册表
package listener

import "sync"

// ID 监听器注册ID
type ID uint64

type entry[L any] struct {
	id ID
	l  L
}

// Registry 监听器注册表（写时复制）
// 通知时取快照遍历，监听器在回调中注销自身不会影响本轮通知
type Registry[L any] struct {
	mu      sync.RWMutex
	entries []entry[L]
	nextID  ID
}

// Add 注册监听器，返回注册ID
func (r *Registry[L]) Add(l L) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	next := make([]entry[L], len(r.entries), len(r.entries)+1)
	copy(next, r.entries)
	r.entries = append(next, entry[L]{id: r.nextID, l: l})
	return r.nextID
}

// Remove 注销监听器，不存在时返回false
func (r *Registry[L]) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id != id {
			continue
		}
		next := make([]entry[L], 0, len(r.entries)-1)
		next = append(next, r.entries[:i]...)
		r.entries = append(next, r.entries[i+1:]...)
		return true
	}
	return false
}

// Len 返回已注册数量
func (r *Registry[L]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot 按注册顺序返回当前监听器
func (r *Registry[L]) Snapshot() []L {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	out := make([]L, len(entries))
	for i, e := range entries {
		out[i] = e.l
	}
	return out
}

// Reversed 按注册逆序返回当前监听器（后注册的先通知）
func (r *Registry[L]) Reversed() []L {
	out := r.Snapshot()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
