package domain

import "math"

// Config holds the complete Covenant configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier" yaml:"tier" mapstructure:"tier"`

	// Engine holds the scoring constants and rule sources
	Engine EngineConfig `json:"engine" yaml:"engine" mapstructure:"engine"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository" mapstructure:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus" mapstructure:"eventBus"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker" mapstructure:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// EngineConfig holds the tunable constants of segmentation and scoring.
// The defaults are compatibility values, not derived ones.
type EngineConfig struct {
	// Segmentation
	FallbackMinClauses int `json:"fallbackMinClauses" yaml:"fallbackMinClauses" mapstructure:"fallbackMinClauses"`
	ParagraphMinLength int `json:"paragraphMinLength" yaml:"paragraphMinLength" mapstructure:"paragraphMinLength"`

	// Clause-level cut points
	ClauseHighThreshold   float64 `json:"clauseHighThreshold" yaml:"clauseHighThreshold" mapstructure:"clauseHighThreshold"`
	ClauseMediumThreshold float64 `json:"clauseMediumThreshold" yaml:"clauseMediumThreshold" mapstructure:"clauseMediumThreshold"`

	// Document-level cut points
	ContractHighThreshold   float64 `json:"contractHighThreshold" yaml:"contractHighThreshold" mapstructure:"contractHighThreshold"`
	ContractMediumThreshold float64 `json:"contractMediumThreshold" yaml:"contractMediumThreshold" mapstructure:"contractMediumThreshold"`

	// Escalation when many clauses are High
	EscalationHighCount int     `json:"escalationHighCount" yaml:"escalationHighCount" mapstructure:"escalationHighCount"`
	EscalationFactor    float64 `json:"escalationFactor" yaml:"escalationFactor" mapstructure:"escalationFactor"`

	MaxScore float64 `json:"maxScore" yaml:"maxScore" mapstructure:"maxScore"`

	// Report sizes
	TopHighClauses   int `json:"topHighClauses" yaml:"topHighClauses" mapstructure:"topHighClauses"`
	TopMediumClauses int `json:"topMediumClauses" yaml:"topMediumClauses" mapstructure:"topMediumClauses"`
	KeyRiskAreas     int `json:"keyRiskAreas" yaml:"keyRiskAreas" mapstructure:"keyRiskAreas"`

	// MaxWorkers bounds per-document clause fan-out
	MaxWorkers int `json:"maxWorkers" yaml:"maxWorkers" mapstructure:"maxWorkers"`

	// RulesFile is an optional YAML rule pack merged into the builtin table
	RulesFile string `json:"rulesFile" yaml:"rulesFile" mapstructure:"rulesFile"`
}

// ClauseLevel maps a clause score to its severity.
func (c EngineConfig) ClauseLevel(score float64) Severity {
	return level(score, c.ClauseHighThreshold, c.ClauseMediumThreshold)
}

// ContractLevel maps a document score to its severity.
// Document cut points are lower than clause ones.
func (c EngineConfig) ContractLevel(score float64) Severity {
	return level(score, c.ContractHighThreshold, c.ContractMediumThreshold)
}

// Clamp caps score at MaxScore. Levels are assigned from the clamped
// value before rounding.
func (c EngineConfig) Clamp(score float64) float64 {
	if c.MaxScore > 0 && score > c.MaxScore {
		return c.MaxScore
	}
	return score
}

// Round rounds a score to two decimals for reporting.
func Round(score float64) float64 {
	return math.Round(score*100) / 100
}

func level(score, high, medium float64) Severity {
	switch {
	case score >= high:
		return SeverityHigh
	case score >= medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host" mapstructure:"host"`
	Port         int    `json:"port" yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout" mapstructure:"readTimeout"`    // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	MaxBodyBytes int64  `json:"maxBodyBytes" yaml:"maxBodyBytes" mapstructure:"maxBodyBytes"`
}

// WorkerConfig holds async worker settings.
type WorkerConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TenantIDs []string `json:"tenantIds" yaml:"tenantIds" mapstructure:"tenantIds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName" mapstructure:"serviceName"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultEngineConfig returns the compatibility constants of the engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FallbackMinClauses:      3,
		ParagraphMinLength:      200,
		ClauseHighThreshold:     70,
		ClauseMediumThreshold:   40,
		ContractHighThreshold:   60,
		ContractMediumThreshold: 30,
		EscalationHighCount:     3,
		EscalationFactor:        1.3,
		MaxScore:                100,
		TopHighClauses:          3,
		TopMediumClauses:        5,
		KeyRiskAreas:            5,
		MaxWorkers:              10,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			MaxBodyBytes: 10 << 20,
		},
		Tier:   TierCommunity,
		Engine: DefaultEngineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./covenant.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "covenant",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "covenant",
	}
	cfg.Cache = CacheConfig{
		Type:            "redis",
		RedisAddr:       "localhost:6379",
		EnableTwoPhase:  true,
		LocalMaxSize:    1000,
		LocalTTLSeconds: 300,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "covenant-workers",
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
