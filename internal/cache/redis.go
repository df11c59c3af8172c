package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is an ExternalCache backed by Redis, for deployments where
// several processes share one config cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache initializes a Redis-backed cache and verifies connectivity
// before returning.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		// Timeouts prevent a slow cache from stalling refreshes
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(initCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get retrieves the blob stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	blob, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q from redis: %w", key, err)
	}
	return blob, true, nil
}

// Set stores the blob under key without expiry; records carry their own
// fetch timestamp.
func (c *RedisCache) Set(ctx context.Context, key string, value string) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write key %q to redis: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
