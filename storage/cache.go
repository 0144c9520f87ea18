package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const bundleCacheKey = "faint-memory:initial-data"

// BundleCache keeps the initial-data bundle in Redis so new sessions skip the
// three database reads. A nil *BundleCache disables caching.
type BundleCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBundleCache connects to Redis. If addr is empty it returns (nil, nil).
func NewBundleCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*BundleCache, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	slog.Info("connected to Redis", "tag", "storage", "addr", addr)
	return &BundleCache{rdb: rdb, ttl: ttl}, nil
}

// Get returns the cached bundle. ok is false on a miss or when caching is off.
func (c *BundleCache) Get(ctx context.Context) (b Bundle, ok bool, err error) {
	if c == nil || c.rdb == nil {
		return Bundle{}, false, nil
	}
	data, err := c.rdb.Get(ctx, bundleCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Bundle{}, false, nil
	}
	if err != nil {
		return Bundle{}, false, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, false, err
	}
	return b, true, nil
}

// Put stores b with the configured TTL.
func (c *BundleCache) Put(ctx context.Context, b Bundle) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, bundleCacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached bundle. Call after every admin write.
func (c *BundleCache) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, bundleCacheKey).Err()
}

// Close closes the Redis client.
func (c *BundleCache) Close() {
	if c != nil && c.rdb != nil {
		c.rdb.Close()
	}
}
