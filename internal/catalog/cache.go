package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

const (
	// DefaultCacheTTL is used when no TTL is configured
	DefaultCacheTTL = 5 * time.Minute

	cachePrefix = "odds_board:catalog"
)

// kv is the subset of redis commands the cache uses; *redis.Client satisfies it
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache is a read-through cache in front of another Source.
// Redis failures are logged and fall through to the wrapped source.
type RedisCache struct {
	source Source
	client kv
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisCache wraps source with a redis read-through cache
func NewRedisCache(source Source, client kv, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{source: source, client: client, ttl: ttl, log: logger}
}

func (c *RedisCache) key(parts ...string) string {
	k := cachePrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Events returns cached events for sport, loading and caching them on a miss
func (c *RedisCache) Events(ctx context.Context, sport string) ([]models.Event, error) {
	key := c.key("events", sport)

	var cached []models.Event
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	events, err := c.source.Events(ctx, sport)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, events)
	return events, nil
}

// Books returns cached books, loading and caching them on a miss
func (c *RedisCache) Books(ctx context.Context) ([]models.Book, error) {
	key := c.key("books")

	var cached []models.Book
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	books, err := c.source.Books(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, books)
	return books, nil
}

// Invalidate drops the cached events for a sport and the cached books
func (c *RedisCache) Invalidate(ctx context.Context, sport string) error {
	if err := c.client.Del(ctx, c.key("events", sport), c.key("books")).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", sport, err)
	}
	return nil
}

func (c *RedisCache) load(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("catalog cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisCache) store(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("catalog cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
