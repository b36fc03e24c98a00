package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lebanonrates/backend/internal/domain"
)

const maxCleanupInterval = 10 * time.Minute

// memoryItem represents a single cached entry and when it was stored
type memoryItem struct {
	entry    domain.CacheEntry
	storedAt time.Time
}

// MemoryCache is a thread-safe in-process entry store.
// Entries older than the retention window are dropped by a janitor goroutine.
type MemoryCache struct {
	data      map[string]memoryItem
	mutex     sync.RWMutex
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewMemoryCache creates a new in-memory cache. A zero retention keeps entries forever.
func NewMemoryCache(retention time.Duration) *MemoryCache {
	cache := &MemoryCache{
		data:      make(map[string]memoryItem),
		retention: retention,
		stopCh:    make(chan struct{}),
	}

	if retention > 0 {
		interval := retention
		if interval > maxCleanupInterval {
			interval = maxCleanupInterval
		}
		go cache.cleanupExpired(interval)
	}

	return cache
}

// Read retrieves an entry from the cache
func (c *MemoryCache) Read(ctx context.Context, key string) (*domain.CacheEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	entry := item.entry
	entry.Data = append([]byte(nil), item.entry.Data...)
	return &entry, nil
}

// Write stores an entry, replacing any previous one for the key
func (c *MemoryCache) Write(ctx context.Context, key string, entry domain.CacheEntry) error {
	stored := entry
	stored.Data = append([]byte(nil), entry.Data...)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = memoryItem{
		entry:    stored,
		storedAt: time.Now(),
	}
	return nil
}

// Delete removes an entry from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes entries past the retention window periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictOlderThan(time.Now().Add(-c.retention))
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) evictOlderThan(cutoff time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, item := range c.data {
		if item.storedAt.Before(cutoff) {
			delete(c.data, key)
		}
	}
}

// Close stops the janitor goroutine
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Size returns the number of entries held, reported by the health endpoint
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
