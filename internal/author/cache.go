package author

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL bounds how long a cached author lookup stays valid.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores author lookup results keyed by book id.
type Cache interface {
	Get(ctx context.Context, bookID string) (*Details, bool)
	Set(ctx context.Context, bookID string, details *Details)
}

// MemoryCache is an in-process Cache for the lifetime of one run.
type MemoryCache struct {
	data sync.Map
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(_ context.Context, bookID string) (*Details, bool) {
	v, ok := c.data.Load(bookID)
	if !ok {
		return nil, false
	}
	details, ok := v.(*Details)
	return details, ok
}

func (c *MemoryCache) Set(_ context.Context, bookID string, details *Details) {
	c.data.Store(bookID, details)
}

// RedisCache shares author lookups across processes with a TTL.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg *RedisConfig) (*RedisCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis cache: config is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis cache: address is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: connect %s: %w", cfg.Address, err)
	}

	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "bookscout:author:",
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, bookID string) (*Details, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+bookID).Bytes()
	if err != nil {
		return nil, false
	}
	var details Details
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, false
	}
	return &details, true
}

func (c *RedisCache) Set(ctx context.Context, bookID string, details *Details) {
	data, err := json.Marshal(details)
	if err != nil {
		return
	}
	// Cache writes are best effort; a miss next time is the worst case.
	_ = c.rdb.Set(ctx, c.prefix+bookID, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
