package cache

import (
	"context"
	"sync"
)

// MemoryCache is an in-memory ExternalCache. It is the default backend and
// is also used by tests to observe cache traffic.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]string),
	}
}

// Get retrieves the blob stored under key.
func (m *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.entries[key]
	return blob, ok, nil
}

// Set stores the blob under key.
func (m *MemoryCache) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}
