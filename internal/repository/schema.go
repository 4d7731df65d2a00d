package repository

// Schema definitions for the Covenant database.
// Compatible with both SQLite and PostgreSQL.

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    contract_type TEXT NOT NULL,
    text TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(tenant_id, fingerprint);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    contract_type TEXT NOT NULL,
    level TEXT NOT NULL,
    score REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    clauses TEXT NOT NULL,
    entities TEXT NOT NULL,
    result TEXT NOT NULL,
    report TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analyses_document ON analyses(tenant_id, document_id);
CREATE INDEX IF NOT EXISTS idx_analyses_level ON analyses(tenant_id, level);
`

// schemaRiskRules holds custom risk factors layered over the builtin table.
const schemaRiskRules = `
CREATE TABLE IF NOT EXISTS risk_rules (
    name TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    keywords TEXT NOT NULL,
    base_score REAL NOT NULL,
    description TEXT,
    mitigation TEXT,
    condition_expr TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (name, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_rules_enabled ON risk_rules(tenant_id, enabled);
`

const schemaContractProfiles = `
CREATE TABLE IF NOT EXISTS contract_profiles (
    contract_type TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    weights TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (contract_type, tenant_id)
);
`

const schemaAuditSessions = `
CREATE TABLE IF NOT EXISTS audit_sessions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_name TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    events TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_sessions_tenant ON audit_sessions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_sessions_status ON audit_sessions(tenant_id, status);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDocuments,
		schemaAnalyses,
		schemaRiskRules,
		schemaContractProfiles,
		schemaAuditSessions,
	}
}
