package conversation

import (
	"sync"
	"testing"
)

// TestRegistryLifecycle 注册、查找、注销
func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	c := newTestConversation(t, nil)

	r.Put(c)
	if r.Len() != 1 {
		t.Errorf("注册后长度错误: %d", r.Len())
	}

	got, ok := r.Get(c.ID())
	if !ok || got != c {
		t.Errorf("查找失败")
	}

	r.Remove(c.ID())
	if _, ok := r.Get(c.ID()); ok {
		t.Errorf("注销后仍可查到")
	}
	if r.Len() != 0 {
		t.Errorf("注销后长度错误: %d", r.Len())
	}
}

// TestRegistryConcurrent 并发注册注销不竞争
func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestConversation(t, nil)
			r.Put(c)
			r.Get(c.ID())
			r.Remove(c.ID())
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("所有对话注销后长度应为 0: %d", r.Len())
	}
}
