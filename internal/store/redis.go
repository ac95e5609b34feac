package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache is a read-through cache in front of another Store. Redis
// failures are logged and served from the wrapped store; misses are not
// cached.
type RedisCache struct {
	next   Store
	client RedisClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache wraps next with a cache whose entries live for ttl.
func NewRedisCache(next Store, client RedisClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{next: next, client: client, ttl: ttl, prefix: "otruyen:", logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Record, error) {
	cacheKey := c.prefix + "item:" + key
	var rec Record
	if c.load(ctx, cacheKey, &rec) {
		return rec, nil
	}
	rec, err := c.next.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	c.save(ctx, cacheKey, rec)
	return rec, nil
}

func (c *RedisCache) Query(ctx context.Context, q Query) ([]Record, error) {
	cacheKey := fmt.Sprintf("%squery:%q:%q:%d:%d", c.prefix, q.OrderBy, q.StartAt, q.LimitToFirst, q.LimitToLast)
	var records []Record
	if c.load(ctx, cacheKey, &records) {
		return records, nil
	}
	records, err := c.next.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	c.save(ctx, cacheKey, records)
	return records, nil
}

func (c *RedisCache) load(ctx context.Context, key string, v any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *RedisCache) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "key", key, "error", err)
	}
}
