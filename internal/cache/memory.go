package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no cache file is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, url string) (*Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[url]
	m.mu.RUnlock()
	if !ok || e.Expired(time.Now()) {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *MemoryStore) Put(_ context.Context, entry Entry) error {
	m.mu.Lock()
	m.entries[entry.URL] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
