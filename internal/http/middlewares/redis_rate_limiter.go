package middlewares

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter shared by every API instance.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}

	// first hit opens the window
	if n == 1 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if n <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// key lost its expiry; put one back so it cannot lock out forever
		_ = l.rdb.PExpire(ctx, k, l.window).Err()
		ttl = l.window
	}

	return false, ttl, nil
}
