// Package cache provides the result cache used for repeated engine queries:
// an in-memory LRU tier with per-entry expiry and an optional Redis tier.
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a size-bounded LRU whose entries expire after a fixed TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a memory cache holding at most maxItems entries.
// A zero ttl keeps entries until they are evicted.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxItems)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %s", ttl)
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []byte](maxItems, nil, ttl),
	}, nil
}

// Get returns the value stored under key.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *MemoryCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
