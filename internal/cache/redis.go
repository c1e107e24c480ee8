package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/realdiag-server/internal/domain"
)

const keyPrefix = "realdiag:"

// RedisCache is the shared second tier. Every call goes through a circuit
// breaker; while it is open calls fail immediately with gobreaker.ErrOpenState.
type RedisCache struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewRedisCache connects to the Redis instance named by config.RedisURL.
func NewRedisCache(ctx context.Context, config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries != 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, config.TTL, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// A miss is a normal answer, not a Redis failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	})

	return &RedisCache{
		client:  client,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns the value stored under key. A miss is reported as (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, keyPrefix+key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return out.([]byte), true, nil
}

// Set stores value under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// State reports the circuit breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
