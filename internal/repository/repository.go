// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/covenant/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const memoryPath = ":memory:"

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// poolSettings bounds the connection pool of one repository.
type poolSettings struct {
	MaxOpen  int
	MaxIdle  int
	Lifetime time.Duration
}

// open connects to the configured database and sizes its pool.
func open(cfg domain.RepositoryConfig) (*sql.DB, error) {
	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" && !isMemory(cfg.SQLitePath) {
		dir := filepath.Dir(sqlitePath(cfg))
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	pool := poolFor(cfg)
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.Lifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	return db, nil
}

// dataSource returns the database/sql driver name and DSN for cfg.
func dataSource(cfg domain.RepositoryConfig) (string, string, error) {
	switch cfg.Driver {
	case "sqlite":
		if isMemory(cfg.SQLitePath) {
			return "sqlite", "file::memory:?_pragma=foreign_keys(ON)", nil
		}
		// WAL lets API reads proceed while the worker persists analyses.
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", sqlitePath(cfg))
		return "sqlite", dsn, nil

	case "postgres":
		host := cfg.PostgresHost
		if host == "" {
			host = "localhost"
		}
		port := cfg.PostgresPort
		if port == 0 {
			port = 5432
		}
		dbname := cfg.PostgresDB
		if dbname == "" {
			dbname = "covenant"
		}
		sslmode := cfg.PostgresSSLMode
		if sslmode == "" {
			sslmode = "disable"
		}

		params := []string{
			"host=" + quoteParam(host),
			fmt.Sprintf("port=%d", port),
			"user=" + quoteParam(cfg.PostgresUser),
			"password=" + quoteParam(cfg.PostgresPassword),
			"dbname=" + quoteParam(dbname),
			"sslmode=" + quoteParam(sslmode),
			"application_name=covenant",
			"connect_timeout=10",
		}
		return "postgres", strings.Join(params, " "), nil

	default:
		return "", "", fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// poolFor applies per-driver defaults to the configured pool limits.
// A document analysis writes three rows, so the defaults cover the worker
// and concurrent API requests without queueing on the pool.
func poolFor(cfg domain.RepositoryConfig) poolSettings {
	if cfg.Driver == "sqlite" && isMemory(cfg.SQLitePath) {
		// Every connection to :memory: is a separate database.
		return poolSettings{MaxOpen: 1, MaxIdle: 1}
	}

	var p poolSettings
	switch cfg.Driver {
	case "postgres":
		p = poolSettings{MaxOpen: 20, MaxIdle: 10, Lifetime: 30 * time.Minute}
	default:
		p = poolSettings{MaxOpen: 4, MaxIdle: 4}
	}

	if cfg.MaxOpenConns > 0 {
		p.MaxOpen = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		p.MaxIdle = cfg.MaxIdleConns
	}
	if p.MaxIdle > p.MaxOpen {
		p.MaxIdle = p.MaxOpen
	}
	if cfg.ConnMaxLifetime() > 0 {
		p.Lifetime = cfg.ConnMaxLifetime()
	}
	return p
}

func sqlitePath(cfg domain.RepositoryConfig) string {
	if cfg.SQLitePath == "" {
		return "./covenant.db"
	}
	return cfg.SQLitePath
}

func isMemory(path string) bool {
	return path == memoryPath
}

// quoteParam quotes a libpq keyword value when it is empty or contains
// spaces, quotes or backslashes.
func quoteParam(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDocument stores a document with tenant isolation.
func (r *SQLRepository) SaveDocument(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (
			id, tenant_id, name, contract_type, text, fingerprint, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			contract_type = excluded.contract_type,
			text = excluded.text,
			fingerprint = excluded.fingerprint
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, tenantID, doc.Name, string(doc.ContractType),
		doc.Text, doc.Fingerprint, createdAt,
	)
	return err
}

// GetDocument retrieves a document with tenant isolation.
func (r *SQLRepository) GetDocument(ctx context.Context, tenantID string, docID string) (*domain.Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, contract_type, text, fingerprint, created_at
		FROM documents
		WHERE tenant_id = ? AND id = ?
	`

	var doc domain.Document
	var contractType string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, docID).Scan(
		&doc.ID, &doc.TenantID, &doc.Name, &contractType,
		&doc.Text, &doc.Fingerprint, &doc.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.ContractType = domain.ContractType(contractType)
	return &doc, nil
}

// SaveAnalysis stores an analysis result with tenant isolation.
// Level and score are denormalized for querying.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}

	clauses, err := json.Marshal(analysis.Clauses)
	if err != nil {
		return fmt.Errorf("failed to encode clauses: %w", err)
	}
	entities, err := json.Marshal(analysis.Entities)
	if err != nil {
		return fmt.Errorf("failed to encode entities: %w", err)
	}
	result, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	report, err := json.Marshal(analysis.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	metadata, _ := json.Marshal(analysis.Metadata)

	level, score := string(domain.SeverityLow), 0.0
	if analysis.Result != nil {
		level, score = string(analysis.Result.Level), analysis.Result.Score
	}

	query := `
		INSERT INTO analyses (
			id, tenant_id, document_id, session_id, contract_type, level, score,
			created_at, clauses, entities, result, report, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, analysis.DocumentID, analysis.SessionID,
		string(analysis.ContractType), level, score, analysis.CreatedAt,
		string(clauses), string(entities), string(result), string(report), string(metadata),
	)
	return err
}

// GetAnalysis retrieves an analysis result with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, document_id, session_id, contract_type, created_at,
			   clauses, entities, result, report, metadata
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.Analysis
	var contractType, clauses, entities, result, report, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&a.ID, &a.TenantID, &a.DocumentID, &a.SessionID, &contractType, &a.CreatedAt,
		&clauses, &entities, &result, &report, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.ContractType = domain.ContractType(contractType)
	if err := json.Unmarshal([]byte(clauses), &a.Clauses); err != nil {
		return nil, fmt.Errorf("failed to parse clauses: %w", err)
	}
	if err := json.Unmarshal([]byte(entities), &a.Entities); err != nil {
		return nil, fmt.Errorf("failed to parse entities: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &a.Report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &a.Metadata)
	}

	return &a, nil
}

// SaveRiskRule stores a custom risk rule. Saving a previously deleted
// rule re-enables it.
func (r *SQLRepository) SaveRiskRule(ctx context.Context, tenantID string, rule *domain.RiskRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule == nil || rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}

	keywords, _ := json.Marshal(rule.Keywords)

	now := time.Now().UTC()

	query := `
		INSERT INTO risk_rules (
			name, tenant_id, keywords, base_score, description, mitigation,
			condition_expr, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(name, tenant_id) DO UPDATE SET
			keywords = excluded.keywords,
			base_score = excluded.base_score,
			description = excluded.description,
			mitigation = excluded.mitigation,
			condition_expr = excluded.condition_expr,
			enabled = 1,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.Name, tenantID, string(keywords), rule.BaseScore,
		rule.Description, rule.Mitigation, rule.Condition,
		now, now,
	)
	return err
}

// ListRiskRules returns enabled custom rules in creation order.
func (r *SQLRepository) ListRiskRules(ctx context.Context, tenantID string) ([]*domain.RiskRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT name, keywords, base_score, description, mitigation, condition_expr
		FROM risk_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY created_at, name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RiskRule
	for rows.Next() {
		var rule domain.RiskRule
		var keywords string
		var description, mitigation, condition sql.NullString

		if err := rows.Scan(
			&rule.Name, &keywords, &rule.BaseScore,
			&description, &mitigation, &condition,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(keywords), &rule.Keywords); err != nil {
			return nil, fmt.Errorf("failed to parse keywords for rule %s: %w", rule.Name, err)
		}
		rule.Description = description.String
		rule.Mitigation = mitigation.String
		rule.Condition = condition.String

		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteRiskRule soft-deletes a custom rule.
func (r *SQLRepository) DeleteRiskRule(ctx context.Context, tenantID string, name string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE risk_rules SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND name = ? AND enabled = 1
	`

	res, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, name)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveContractProfile stores weight overrides for a contract type.
// The stored weights replace any earlier override for that type.
func (r *SQLRepository) SaveContractProfile(ctx context.Context, tenantID string, profile *domain.ContractProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if profile == nil || profile.ContractType == "" {
		return fmt.Errorf("%w: contract type is required", ErrInvalidInput)
	}

	weights, _ := json.Marshal(profile.Weights)

	query := `
		INSERT INTO contract_profiles (contract_type, tenant_id, weights, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contract_type, tenant_id) DO UPDATE SET
			weights = excluded.weights,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		string(profile.ContractType), tenantID, string(weights), time.Now().UTC(),
	)
	return err
}

// ListContractProfiles returns all stored weight overrides.
func (r *SQLRepository) ListContractProfiles(ctx context.Context, tenantID string) ([]*domain.ContractProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT contract_type, weights
		FROM contract_profiles
		WHERE tenant_id = ?
		ORDER BY contract_type
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.ContractProfile
	for rows.Next() {
		var contractType, weights string
		if err := rows.Scan(&contractType, &weights); err != nil {
			return nil, err
		}

		p := &domain.ContractProfile{ContractType: domain.ContractType(contractType)}
		if err := json.Unmarshal([]byte(weights), &p.Weights); err != nil {
			return nil, fmt.Errorf("failed to parse weights for %s: %w", contractType, err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// SaveAuditSession stores or updates an audit session.
func (r *SQLRepository) SaveAuditSession(ctx context.Context, tenantID string, session *domain.AuditSession) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	events, err := json.Marshal(session.Events)
	if err != nil {
		return fmt.Errorf("failed to encode audit events: %w", err)
	}

	var completedAt sql.NullTime
	if session.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *session.CompletedAt, Valid: true}
	}

	query := `
		INSERT INTO audit_sessions (
			id, tenant_id, document_name, status, started_at, completed_at, events
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			events = excluded.events
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		session.ID, tenantID, session.DocumentName, session.Status,
		session.StartedAt, completedAt, string(events),
	)
	return err
}

// GetAuditSession retrieves an audit session with tenant isolation.
func (r *SQLRepository) GetAuditSession(ctx context.Context, tenantID string, sessionID string) (*domain.AuditSession, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, document_name, status, started_at, completed_at, events
		FROM audit_sessions
		WHERE tenant_id = ? AND id = ?
	`

	var s domain.AuditSession
	var completedAt sql.NullTime
	var events string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, sessionID).Scan(
		&s.ID, &s.TenantID, &s.DocumentName, &s.Status,
		&s.StartedAt, &completedAt, &events,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(events), &s.Events); err != nil {
		return nil, fmt.Errorf("failed to parse audit events: %w", err)
	}

	return &s, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
