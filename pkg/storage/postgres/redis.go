package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps the optional Redis used for rate limiting and webhook
// event deduplication.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient parses a redis:// URL and verifies connectivity
func NewRedisClient(ctx context.Context, redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// GetClient returns the underlying client
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Ping checks connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// MarkSeen records key for ttl and reports whether it was newly recorded
func (c *RedisClient) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Close closes the client
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// Forget removes a key recorded by MarkSeen
func (c *RedisClient) Forget(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
