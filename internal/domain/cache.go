package domain

import (
	"context"
	"time"
)

// Cache defines the interface for the clause-risk result cache.
// Keys are content fingerprints, so entries never go stale; the namespace
// separates results computed under different rule sets.
// A Cache is an accelerator only: the engine is correct without one.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, namespace string, key string) ([]byte, error)

	// Set stores a value in cache. A ttl of zero uses the backend default,
	// which is no expiry unless configured.
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, namespace string, key string) error

	// GetClauseRisk retrieves a cached clause score.
	GetClauseRisk(ctx context.Context, namespace string, key string) (*ClauseRiskResult, error)

	// SetClauseRisk caches a clause score.
	SetClauseRisk(ctx context.Context, namespace string, key string, result *ClauseRiskResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "none", "memory", "ttl" or "redis"
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	// Local cache settings (Community tier)
	LocalMaxSize    int `json:"localMaxSize" yaml:"localMaxSize" mapstructure:"localMaxSize"`
	LocalTTLSeconds int `json:"localTtlSeconds" yaml:"localTtlSeconds" mapstructure:"localTtlSeconds"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr" mapstructure:"redisAddr"`
	RedisPassword string `json:"-" yaml:"redisPassword" mapstructure:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb" mapstructure:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" yaml:"enableTwoPhase" mapstructure:"enableTwoPhase"` // If true, check local first, then Redis
}

// LocalTTL returns the L1 entry lifetime as a duration.
func (c CacheConfig) LocalTTL() time.Duration {
	return time.Duration(c.LocalTTLSeconds) * time.Second
}
