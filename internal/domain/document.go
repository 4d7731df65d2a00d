package domain

import (
	"time"
)

// Document is normalized contract text submitted for analysis.
type Document struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenantId"`
	Name         string       `json:"name"`
	ContractType ContractType `json:"contractType"`
	Text         string       `json:"text"`
	Fingerprint  string       `json:"fingerprint"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Analysis is the complete output of one analysis run over a document.
type Analysis struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenantId"`
	DocumentID   string       `json:"documentId"`
	SessionID    string       `json:"sessionId"`
	ContractType ContractType `json:"contractType"`
	CreatedAt    time.Time    `json:"createdAt"`

	Clauses  []Clause            `json:"clauses"`
	Entities *Entities           `json:"entities"`
	Result   *ContractRiskResult `json:"result"`
	Report   *RiskReport         `json:"report"`

	Metadata AnalysisMetadata `json:"metadata"`
}

// AnalysisMetadata contains processing information.
type AnalysisMetadata struct {
	TraceID       string          `json:"traceId"`
	Strategy      SegmentStrategy `json:"strategy"`
	ClauseCount   int             `json:"clauseCount"`
	SegmentMs     int64           `json:"segmentMs"`
	ScoringMs     int64           `json:"scoringMs"`
	TotalMs       int64           `json:"totalMs"`
	RuleSetDigest string          `json:"ruleSetDigest"`
	EngineVersion string          `json:"engineVersion"`
}

// AuditSession is the staged trail of one analysis run.
type AuditSession struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenantId"`
	DocumentName string       `json:"documentName"`
	Status       string       `json:"status"`
	StartedAt    time.Time    `json:"startedAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	Events       []AuditEvent `json:"events"`
}

// AuditEvent is a single stage entry in an audit session.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     string         `json:"stage"`
	Data      map[string]any `json:"data,omitempty"`
}

// Audit session statuses.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// Audit stages recorded by the analysis pipeline.
const (
	StageDocumentReceived  = "document_received"
	StageClausesExtracted  = "clauses_extracted"
	StageEntitiesExtracted = "entities_extracted"
	StageRiskScored        = "risk_scored"
	StageReportGenerated   = "report_generated"
	StageError             = "error"
)
