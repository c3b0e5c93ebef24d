package middleware

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisRateLimiter is a fixed-window limiter shared across instances
// through Redis
type RedisRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RedisRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RedisRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow increments the key's counter for the current window
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}

	// The first request of a window starts its expiry; later requests must
	// not extend it.
	resetIn := ttl.Val()
	if resetIn < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis error: %w", err)
		}
		resetIn = rl.config.WindowDuration
	}

	return decide(rl.config, incr.Val(), resetIn), nil
}

// Reset clears the rate limit for a key
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.Del(ctx, redisKey).Err()
}
