package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica pointing at
// the same Redis. Each window is an INCR'd key that expires with the window.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLimiter(client redis.Cmdable, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, config RateLimitConfig, key string) (bool, time.Duration, error) {
	k := fmt.Sprintf("%s:%s:%s", l.prefix, config.Name, key)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. a crash between INCR and EXPIRE).
		if err := l.client.Expire(ctx, k, config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
		ttl = config.Window
	}
	return false, ttl, nil
}
