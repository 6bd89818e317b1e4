package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache stores encoded report results. Invalidate drops everything
// cached so far; it is called after every write to the ledger.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context) error
}

// LocalReportCache keeps reports in an in-process LRU.
type LocalReportCache struct {
	lru *LRUCache[[]byte]
}

func NewLocalReportCache(maxSize int, ttl time.Duration) *LocalReportCache {
	return &LocalReportCache{lru: NewLRUCache[[]byte](maxSize, ttl)}
}

func (c *LocalReportCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *LocalReportCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Set(key, value)
	return nil
}

func (c *LocalReportCache) Invalidate(context.Context) error {
	c.lru.Clear()
	return nil
}

// CleanExpired lets a Manager expire local entries.
func (c *LocalReportCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

// RedisReportCache shares reports across instances. Keys embed a
// generation number; Invalidate bumps it so older keys are never read
// again and age out through their TTL.
type RedisReportCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisReportCache parses url (redis://...) and pings the server.
func NewRedisReportCache(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisReportCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.InfoContext(ctx, "Connected to Redis report cache", "addr", opts.Addr, "db", opts.DB)
	return NewRedisReportCacheFromClient(rdb, prefix, ttl), nil
}

func NewRedisReportCacheFromClient(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisReportCache {
	if prefix == "" {
		prefix = "cashflow:report"
	}
	return &RedisReportCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Client exposes the connection so the worker can build a lock on it.
func (c *RedisReportCache) Client() redis.UniversalClient { return c.rdb }

func (c *RedisReportCache) generationKey() string { return c.prefix + ":gen" }

func (c *RedisReportCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisReportCache) key(gen int64, key string) string {
	return c.prefix + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("read report generation: %w", err)
	}
	v, err := c.rdb.Get(ctx, c.key(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read report %s: %w", key, err)
	}
	return v, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value []byte) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return fmt.Errorf("read report generation: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(gen, key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("bump report generation: %w", err)
	}
	return nil
}

func (c *RedisReportCache) Close() error {
	return c.rdb.Close()
}

// NoopReportCache never stores anything.
type NoopReportCache struct{}

func (NoopReportCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopReportCache) Set(context.Context, string, []byte) error         { return nil }
func (NoopReportCache) Invalidate(context.Context) error                  { return nil }
