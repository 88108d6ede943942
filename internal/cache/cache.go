// Package cache provides an optional render-output cache. When disabled the
// noop implementation keeps the render path unconditional.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reportd/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// RenderCache stores rendered report output keyed by definition and parameters.
type RenderCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, prefix string) error
}

// Key derives a stable cache key from the report name, the serving definition
// identity, the output format and the render parameters. The report name
// leads so overriding a definition can invalidate by name prefix.
func Key(report, definitionID, format string, params map[string]any) string {
	payload, _ := json.Marshal(params)
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s:%s:%s", report, definitionID, format, hex.EncodeToString(sum[:]))
}

// NewFromConfig builds the configured cache, or a noop when disabled.
func NewFromConfig(cfg config.Config, logger *logrus.Logger) RenderCache {
	if !cfg.Cache.Enabled {
		return NoopCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	return &RedisCache{
		client: client,
		prefix: cfg.Cache.Prefix,
		ttl:    cfg.Cache.TTL,
		logger: logger,
	}
}

// RedisCache is a redis-backed render cache.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

func (c *RedisCache) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get returns the cached bytes or ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return data, nil
}

// Set stores rendered bytes with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.fullKey(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// invalidatePattern scopes the scan to one report name. Keys are
// name:definitionID:format:hash, so the separator keeps "report" from
// matching "report_activity".
func (c *RedisCache) invalidatePattern(name string) string {
	return c.fullKey(name) + ":*"
}

// Invalidate removes all entries for a report name, used when a definition
// is overridden or deleted.
func (c *RedisCache) Invalidate(ctx context.Context, name string) error {
	pattern := c.invalidatePattern(name)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache invalidate failed: %w", err)
		}
	}
	return iter.Err()
}

// NoopCache always misses.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, error) { return nil, ErrMiss }
func (NoopCache) Set(ctx context.Context, key string, value []byte) error {
	return nil
}
func (NoopCache) Invalidate(ctx context.Context, prefix string) error { return nil }
