package auth

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultKeyCacheTTL  = 600 * time.Second
	DefaultKeyCacheSize = 100
)

type keyEntry struct {
	key       string
	expiry    time.Time
	insertIdx int64
}

// KeyCache holds verification keys by URL for a fixed TTL.
// Concurrent misses on the same URL may both fetch; the last write wins.
type KeyCache struct {
	mu         sync.RWMutex
	items      map[string]keyEntry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
	now        func() time.Time
}

// NewKeyCache returns a cache. Non-positive arguments select the defaults.
func NewKeyCache(ttl time.Duration, maxEntries int) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultKeyCacheSize
	}
	return &KeyCache{
		items:      make(map[string]keyEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (c *KeyCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the key stored for url if it has not expired.
func (c *KeyCache) Get(url string) (string, bool) {
	c.mu.RLock()
	e, ok := c.items[url]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if !now.Before(e.expiry) {
		c.mu.Lock()
		if e2, ok2 := c.items[url]; ok2 && !c.now().Before(e2.expiry) {
			delete(c.items, url)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.key, true
}

// Set stores key for url, evicting the oldest entry when full.
func (c *KeyCache) Set(url, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := keyEntry{key: key, expiry: c.now().Add(c.ttl), insertIdx: c.nextIdx}
	c.nextIdx++

	if _, exists := c.items[url]; !exists && len(c.items) >= c.maxEntries {
		c.evictOldest()
	}
	c.items[url] = e
}

// GetOrFetch returns the cached key for url, calling fetch on a miss and
// caching its result. Errors are not cached.
func (c *KeyCache) GetOrFetch(ctx context.Context, url string, fetch func(ctx context.Context, url string) (string, error)) (string, error) {
	if key, ok := c.Get(url); ok {
		return key, nil
	}
	key, err := fetch(ctx, url)
	if err != nil {
		return "", err
	}
	c.Set(url, key)
	return key, nil
}

// Len returns the number of entries, expired ones included.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest must be called with mu held.
func (c *KeyCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1
	for key, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
