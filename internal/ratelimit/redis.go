package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter backs the window counter with Redis, sharing the budget across
// processes. Keys are "ratelimit:{scope}:{key}" with a TTL set by the first
// increment of each window.
type RedisCounter struct {
	client redis.UniversalClient
}

// NewRedisCounter wraps an existing Redis client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

var _ Counter = (*RedisCounter)(nil)

func redisKey(scope, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, key)
}

// Get returns the current count; a missing or expired key reads as zero.
func (c *RedisCounter) Get(ctx context.Context, scope, key string) (int64, error) {
	n, err := c.client.Get(ctx, redisKey(scope, key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate counter: %w", err)
	}
	return n, nil
}

// Incr increments via INCR; the increment that creates the key (count 1)
// attaches the window TTL.
func (c *RedisCounter) Incr(ctx context.Context, scope, key string, window time.Duration) (int64, error) {
	k := redisKey(scope, key)
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("incr rate counter: %w", err)
	}
	if n == 1 {
		if err := c.client.Expire(ctx, k, window).Err(); err != nil {
			return n, fmt.Errorf("set rate counter ttl: %w", err)
		}
	}
	return n, nil
}
