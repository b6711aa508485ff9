// Package redis provides a Redis/Valkey cache driver with failover to in-memory.
package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/pantryware/homestock/internal/cache"
	"github.com/pantryware/homestock/internal/cache/memory"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr         string `mapstructure:"addr"`     // Redis address (host:port)
	Password     string `mapstructure:"password"` // Optional password
	DB           int    `mapstructure:"db"`       // Database number
	PoolSize     int    `mapstructure:"pool_size"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis connection.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

func init() {
	cache.RegisterDriver("redis", func(config map[string]any) cache.Cache {
		cfg := DefaultConfig()
		if config != nil {
			mapstructure.Decode(config, cfg)
		}
		return New(cfg, slog.Default())
	})
}

// Cache wraps a Redis client with automatic failover to in-memory cache.
// When Redis is unavailable, operations transparently fall back to memory.
type Cache struct {
	mu          sync.RWMutex
	config      *Config
	fallback    *memory.Cache
	logger      *slog.Logger
	useFallback bool
}

// New creates a new Redis cache with in-memory fallback.
// The fallback path is used until a Redis client is connected, so a
// misconfigured or absent Redis never takes the service down.
func New(cfg *Config, logger *slog.Logger) *Cache {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	fallback := memory.New(cache.TTLDecisionToken, time.Minute)

	c := &Cache{
		config:      cfg,
		fallback:    fallback,
		logger:      logger,
		useFallback: true,
	}

	if logger != nil {
		logger.Info("cache initialized in memory-fallback mode",
			"redis_addr", cfg.Addr)
	}

	return c
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.fallback.Get(ctx, key)
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.fallback.Set(ctx, key, value, ttl)
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.fallback.Delete(ctx, key)
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.fallback.Exists(ctx, key)
}

// Increment adds delta to a counter.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	return c.fallback.Increment(ctx, key, delta, ttl)
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	return c.fallback.GetCount(ctx, key)
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.fallback.Reset(ctx, key)
}

// Close releases resources.
func (c *Cache) Close() error {
	return c.fallback.Close()
}

// IsUsingFallback returns true if the cache is using in-memory fallback.
func (c *Cache) IsUsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useFallback
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
