// Package cache holds the Redis-backed dedupe marker cache.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roboricindustries/raycon-multichat/internal/config"
)

// SeenCache marks provider message ids with SET NX so concurrent
// deliveries of the same webhook agree on a single winner. It is an
// optimization in front of the storage unique constraint and may fail
// open.
type SeenCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewSeenCache connects to Redis and verifies the connection.
func NewSeenCache(ctx context.Context, log *slog.Logger, cfg config.RedisConfig) (*SeenCache, error) {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("redis connected", slog.String("addr", cfg.Addr))
	return &SeenCache{
		client: client,
		logger: log.With(slog.String("component", "seen_cache")),
	}, nil
}

// MarkSeen records the key if absent and reports whether this caller
// was first.
func (c *SeenCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	first, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return first, nil
}

// Forget drops the marker, letting a later delivery through the
// pre-check again.
func (c *SeenCache) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *SeenCache) Close() error {
	return c.client.Close()
}
