package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/opensource-finance/covenant/internal/domain"
)

// TTLCache is an in-memory cache backed by go-cache. Unlike LRUCache it is
// unbounded and relies on expiry to release memory.
type TTLCache struct {
	c *gocache.Cache
}

// NewTTLCache creates a TTL cache. A defaultTTL of zero never expires.
func NewTTLCache(defaultTTL time.Duration) *TTLCache {
	expiration := defaultTTL
	cleanup := 2 * defaultTTL
	if defaultTTL <= 0 {
		expiration = gocache.NoExpiration
		cleanup = 10 * time.Minute
	}
	return &TTLCache{c: gocache.New(expiration, cleanup)}
}

// Get retrieves a value from cache.
func (c *TTLCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	v, ok := c.c.Get(makeKey(namespace, key))
	if !ok {
		return nil, nil
	}
	return v.([]byte), nil
}

// Set stores a value. A ttl of zero uses the cache default.
func (c *TTLCache) Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.c.Set(makeKey(namespace, key), value, ttl)
	return nil
}

// Delete removes a value from cache.
func (c *TTLCache) Delete(ctx context.Context, namespace string, key string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	c.c.Delete(makeKey(namespace, key))
	return nil
}

// GetClauseRisk retrieves a cached clause score.
func (c *TTLCache) GetClauseRisk(ctx context.Context, namespace string, key string) (*domain.ClauseRiskResult, error) {
	data, err := c.Get(ctx, namespace, riskKey(key))
	if err != nil || data == nil {
		return nil, err
	}
	return decodeClauseRisk(data)
}

// SetClauseRisk caches a clause score.
func (c *TTLCache) SetClauseRisk(ctx context.Context, namespace string, key string, result *domain.ClauseRiskResult, ttl time.Duration) error {
	data, err := encodeClauseRisk(result)
	if err != nil {
		return err
	}
	return c.Set(ctx, namespace, riskKey(key), data, ttl)
}

// Ping checks cache health.
func (c *TTLCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *TTLCache) Close() error {
	c.c.Flush()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (c *TTLCache) Len() int {
	return c.c.ItemCount()
}
