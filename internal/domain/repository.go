// Package domain defines the core interfaces and types for Covenant.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Tenant-scoped methods require tenantID for strict multi-tenancy isolation.
// Risk rules and contract profiles are stored under GlobalTenantID.
type Repository interface {
	// Document operations
	SaveDocument(ctx context.Context, tenantID string, doc *Document) error
	GetDocument(ctx context.Context, tenantID string, docID string) (*Document, error)

	// Analysis results
	SaveAnalysis(ctx context.Context, tenantID string, analysis *Analysis) error
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*Analysis, error)

	// Custom risk rules
	SaveRiskRule(ctx context.Context, tenantID string, rule *RiskRule) error
	ListRiskRules(ctx context.Context, tenantID string) ([]*RiskRule, error)
	DeleteRiskRule(ctx context.Context, tenantID string, name string) error

	// Contract profile overrides
	SaveContractProfile(ctx context.Context, tenantID string, profile *ContractProfile) error
	ListContractProfiles(ctx context.Context, tenantID string) ([]*ContractProfile, error)

	// Audit trail
	SaveAuditSession(ctx context.Context, tenantID string, session *AuditSession) error
	GetAuditSession(ctx context.Context, tenantID string, sessionID string) (*AuditSession, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// GlobalTenantID owns configuration that applies to all tenants.
const GlobalTenantID = "*"

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath" mapstructure:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost" mapstructure:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort" mapstructure:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser" mapstructure:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword" mapstructure:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb" mapstructure:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode" mapstructure:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns       int `json:"maxOpenConns" yaml:"maxOpenConns" mapstructure:"maxOpenConns"`
	MaxIdleConns       int `json:"maxIdleConns" yaml:"maxIdleConns" mapstructure:"maxIdleConns"`
	ConnMaxLifetimeSec int `json:"connMaxLifetimeSec" yaml:"connMaxLifetimeSec" mapstructure:"connMaxLifetimeSec"`
}

// ConnMaxLifetime returns the pool lifetime as a duration.
func (c RepositoryConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSec) * time.Second
}
