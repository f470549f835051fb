package localstore

import (
	"context"
	"sync"

	"github.com/yanizio/studyhub/internal/cache"
)

// DefaultCapacity bounds the memory driver when no capacity is configured.
const DefaultCapacity = 10_000

// Memory is the in-process driver.
type Memory struct {
	mu  sync.Mutex
	lru *cache.LRU
}

// NewMemory returns a Memory store holding at most capacity keys.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Memory{lru: cache.New(capacity)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v.([]byte)), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, clone(value))
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var old []byte
	v, ok := m.lru.Peek(key)
	if ok {
		old = clone(v.([]byte))
	}
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	if next == nil {
		m.lru.Remove(key)
		return nil
	}
	m.lru.Add(key, clone(next))
	return nil
}

func (m *Memory) Scan(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.lru.Keys(prefix)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := m.lru.Peek(k)
		out = append(out, Entry{Key: k, Value: clone(v.([]byte))})
	}
	return out, nil
}

func (m *Memory) Clear(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix == "" {
		m.lru.Purge()
		return nil
	}
	for _, k := range m.lru.Keys(prefix) {
		m.lru.Remove(k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(b []byte) []byte { return append([]byte(nil), b...) }
