package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is a thread-safe in-memory KeyValue implementation. It honors the
// cache namespace and TTL semantics of the contract and never fails, which
// makes it suitable for tests and local runs without a backend.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock. Test hook for expiry behavior.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (m *Memory) store(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = entry
}

// Get returns the value at key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	value, ok := m.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a plain key without expiry.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.store(key, value, 0)
	return nil
}

// CacheGet returns the cached value at key, if present and unexpired.
func (m *Memory) CacheGet(_ context.Context, key string) (string, bool) {
	return m.lookup(CachePrefix + key)
}

// CacheSet stores a cache entry with the given TTL.
func (m *Memory) CacheSet(_ context.Context, key, value string, ttl time.Duration) bool {
	m.store(CachePrefix+key, value, ttl)
	return true
}
