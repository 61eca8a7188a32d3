package conversation

import (
	"sync"
)

// Registry 内存对话注册表。
// 对话随连接创建、随连接销毁，不做跨进程持久化。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conversation
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conversation)}
}

// Put 注册对话
func (r *Registry) Put(c *Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Get 按 id 查找对话
func (r *Registry) Get(id string) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Remove 注销对话
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Len 当前对话数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
