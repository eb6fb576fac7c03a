package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryKV 进程内实现（REDIS_ENABLED=false 或 Redis 不可用时使用）
type MemoryKV struct {
	mu       sync.Mutex
	entries  map[string]memEntry
	counters map[string]*memCounter
	ops      uint64
	now      func() time.Time
}

type memEntry struct {
	value   string
	expires time.Time // zero = no expiry
}

type memCounter struct {
	count   atomic.Int64
	resetAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries:  map[string]memEntry{},
		counters: map[string]*memCounter{},
		now:      time.Now,
	}
}

var _ Store = (*MemoryKV)(nil)

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryKV) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &memCounter{resetAt: now.Add(window)}
		m.counters[key] = c
	}
	m.ops++
	if m.ops%1024 == 0 {
		m.sweepLocked(now)
	}
	m.mu.Unlock()

	return c.count.Add(1), c.resetAt.Sub(now), nil
}

// sweepLocked drops expired entries and counters; caller holds mu.
func (m *MemoryKV) sweepLocked(now time.Time) {
	for k, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, k)
		}
	}
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
