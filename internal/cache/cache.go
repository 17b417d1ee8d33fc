// Package cache provides a small JSON read-through cache on Redis. Cache
// failures degrade to misses; they never fail the caller's operation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with JSON encode/decode and TTL handling.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Config holds configuration for the cache.
type Config struct {
	// Client is the shared Redis client.
	Client *redis.Client
	// TTL is the default entry lifetime; defaults to 5 minutes.
	TTL time.Duration
	// Logger is optional; defaults to slog.Default.
	Logger *slog.Logger
}

// New validates the config and returns a cache.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, errors.New("cache: redis client cannot be nil")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: cfg.Client, ttl: ttl, logger: logger}, nil
}

// Get decodes the cached value for key into dest. The second return reports
// whether the key was present and decodable.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return false, nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetTTL(ctx, key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache set failed to marshal", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

// ClearPattern removes every key matching the pattern, scanning in batches.
func (c *Cache) ClearPattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache clear failed", "pattern", pattern, "error", err)
	}
}
