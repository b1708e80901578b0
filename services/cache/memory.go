package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.createdAt.Add(e.ttl))
}

// Memory is the in-process cache tier. TTL is enforced at read time with
// lazy removal; the entry count is bounded with FIFO eviction.
type Memory struct {
	mu         sync.Mutex
	items      map[string]memoryEntry
	order      []string // insertion order for FIFO eviction
	maxEntries int
	now        func() time.Time
}

// NewMemory creates an in-process store holding at most maxEntries entries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Memory{
		items:      make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if entry.expired(m.now()) {
		delete(m.items, key)
		m.dropFromOrderLocked(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = memoryEntry{value: value, createdAt: m.now(), ttl: ttl}
	m.evictLocked()
	return nil
}

// evictLocked drops the oldest inserted keys until the bound holds.
func (m *Memory) evictLocked() {
	for len(m.items) > m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.items, oldest)
	}
}

// dropFromOrderLocked keeps the FIFO ledger exact: a removed key must leave
// order too, otherwise re-adding it later would append a duplicate and
// eviction would treat the re-added entry as the oldest.
func (m *Memory) dropFromOrderLocked(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; ok {
		delete(m.items, key)
		m.dropFromOrderLocked(key)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]memoryEntry)
	m.order = nil
	return nil
}

func (m *Memory) Stats(_ context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	live := 0
	for _, entry := range m.items {
		if !entry.expired(now) {
			live++
		}
	}
	return Stats{Entries: live, Backend: "memory"}
}

func (m *Memory) Close() error { return nil }
