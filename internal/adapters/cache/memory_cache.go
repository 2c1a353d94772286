package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory verdict cache
type MemoryCache struct {
	entries     map[string]core.CacheEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]core.CacheEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache
}

// Get retrieves a live entry
func (c *MemoryCache) Get(_ context.Context, key string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.ExpiresAt) {
		return nil, fmt.Errorf("cache key %s: %w", key, core.ErrNotFound)
	}
	return &entry, nil
}

// Set stores an entry
func (c *MemoryCache) Set(_ context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = *entry
	return nil
}

// Delete removes an entry
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len is the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

type cleaner interface {
	Cleanup(ctx context.Context) error
}

// startCleanupTask periodically removes expired entries until stopCh closes
func startCleanupTask(c cleaner, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
