package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	RedisErrors  int64 `json:"redis_errors"`
	Sets         int64 `json:"sets"`

	// MemoryEntries is the number of live entries in the memory tier.
	MemoryEntries int       `json:"memory_entries"`
	Since         time.Time `json:"since"`
}

// TieredCache checks memory first (tier 1), then Redis (tier 2) when
// configured. A Redis failure is logged and treated as a miss.
type TieredCache struct {
	memory *MemoryCache
	redis  *RedisCache
	logger *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// NewTieredCache combines a memory tier with an optional Redis tier (nil disables it).
func NewTieredCache(memory *MemoryCache, redis *RedisCache, logger *logrus.Logger) *TieredCache {
	return &TieredCache{
		memory: memory,
		redis:  redis,
		logger: logger,
		stats:  Stats{Since: time.Now()},
	}
}

// Key derives a fixed-length cache key from its parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Get returns the value stored under key from the first tier that has it.
// A Redis hit is copied into memory.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.memory.Get(key); ok {
		c.incrementStat("memory_hits")
		return value, true
	}
	c.incrementStat("memory_misses")

	if c.redis == nil {
		return nil, false
	}

	value, ok, err := c.redis.Get(ctx, key)
	if err != nil {
		c.incrementStat("redis_errors")
		c.logger.WithError(err).Debug("Redis cache read failed, continuing without it")
		return nil, false
	}
	if !ok {
		c.incrementStat("redis_misses")
		return nil, false
	}

	c.incrementStat("redis_hits")
	c.memory.Set(key, value)
	return value, true
}

// Set stores value in every tier.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte) {
	c.incrementStat("sets")
	c.memory.Set(key, value)

	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, key, value); err != nil {
		c.incrementStat("redis_errors")
		c.logger.WithError(err).Debug("Redis cache write failed, continuing without it")
	}
}

// Stats returns a snapshot of the counters since the cache was created.
func (c *TieredCache) Stats() Stats {
	c.statsMu.Lock()
	stats := c.stats
	c.statsMu.Unlock()

	stats.MemoryEntries = c.memory.Len()
	return stats
}

// Close releases the Redis tier.
func (c *TieredCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *TieredCache) incrementStat(name string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	switch name {
	case "memory_hits":
		c.stats.MemoryHits++
	case "memory_misses":
		c.stats.MemoryMisses++
	case "redis_hits":
		c.stats.RedisHits++
	case "redis_misses":
		c.stats.RedisMisses++
	case "redis_errors":
		c.stats.RedisErrors++
	case "sets":
		c.stats.Sets++
	}
}
