package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemoryCache returns an in-process Cache. It backs tests and local runs
// without a Redis instance.
func NewMemoryCache() Cache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

// NewMemoryCacheWithClock returns an in-process Cache with an injectable
// clock so tests can control entry expiry.
func NewMemoryCacheWithClock(clock func() time.Time) Cache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	// Zero expiresAt means the entry never expires.
	if !entry.expiresAt.IsZero() && !c.clock().Before(entry.expiresAt) {
		c.evict(key, entry.expiresAt)
		return "", false, nil
	}
	return entry.value, true, nil
}

// evict drops an expired entry so the map does not grow without bound. The
// expiry is re-checked under the write lock: a concurrent Set may have
// replaced the entry with a live one.
func (c *memoryCache) evict(key string, expiresAt time.Time) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && entry.expiresAt.Equal(expiresAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.clock().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}
