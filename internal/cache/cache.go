package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores decision-cycle results. A miss is (nil, false, nil); a backend
// failure is reported as an error and must not be mistaken for a miss.
// Entries never expire; bump the key version to invalidate.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Entry is a stored value with its insertion timestamp.
type Entry struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
}

// Memory is an in-process Cache. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns a copy of the stored value
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.Value...), true, nil
}

// Set overwrites unconditionally
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{
		Key:        key,
		Value:      append([]byte(nil), value...),
		InsertedAt: m.now(),
	}
	return nil
}

// Entry returns the raw entry including its insertion timestamp.
func (m *Memory) Entry(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
