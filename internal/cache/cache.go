package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/covenant/internal/domain"
)

// New creates a new cache based on configuration.
// "none" (or empty) returns a nil cache: the engine runs uncached.
// "memory" returns an LRU cache, "ttl" a go-cache map.
// "redis" returns a TwoPhaseCache (LRU + Redis) when two-phase is enabled,
// otherwise a plain Redis cache.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "ttl":
		return NewTTLCache(cfg.LocalTTL()), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis for sharing results across nodes
type TwoPhaseCache struct {
	local  *LRUCache
	remote domain.Cache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return NewLayeredCache(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL()), nil
}

// NewLayeredCache puts local in front of remote. l1TTL bounds how long L1
// keeps entries; zero means five minutes.
func NewLayeredCache(local *LRUCache, remote domain.Cache, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL <= 0 {
		l1TTL = 5 * time.Minute
	}
	return &TwoPhaseCache{
		local:  local,
		remote: remote,
		l1TTL:  l1TTL,
	}
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	// Check L1 first
	val, err := c.local.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	// Check L2
	val, err = c.remote.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		// Populate L1 for future reads
		_ = c.local.Set(ctx, namespace, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2.
func (c *TwoPhaseCache) Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, namespace, key, value, c.localTTL(ttl)); err != nil {
		return err
	}

	// Write to L2 with full TTL
	return c.remote.Set(ctx, namespace, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *TwoPhaseCache) Delete(ctx context.Context, namespace string, key string) error {
	if err := c.local.Delete(ctx, namespace, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, namespace, key)
}

// GetClauseRisk retrieves a clause score from L1, then L2.
func (c *TwoPhaseCache) GetClauseRisk(ctx context.Context, namespace string, key string) (*domain.ClauseRiskResult, error) {
	result, err := c.local.GetClauseRisk(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	result, err = c.remote.GetClauseRisk(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if result != nil {
		_ = c.local.SetClauseRisk(ctx, namespace, key, result, c.l1TTL)
	}

	return result, nil
}

// SetClauseRisk caches a clause score in both L1 and L2.
func (c *TwoPhaseCache) SetClauseRisk(ctx context.Context, namespace string, key string, result *domain.ClauseRiskResult, ttl time.Duration) error {
	if err := c.local.SetClauseRisk(ctx, namespace, key, result, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.SetClauseRisk(ctx, namespace, key, result, ttl)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}

// localTTL keeps L1 entries no longer than l1TTL. A zero ttl (no expiry)
// still gets the L1 bound.
func (c *TwoPhaseCache) localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}
