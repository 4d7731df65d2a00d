// Package analysis runs the clause risk pipeline end to end:
// segment, extract entities, score, aggregate, report, persist and audit.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/covenant/internal/clause"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/entity"
	"github.com/opensource-finance/covenant/internal/rules"
	"github.com/opensource-finance/covenant/internal/verdict"
)

// EngineVersion is stamped on every analysis.
const EngineVersion = "covenant-1.0"

var tracer = otel.Tracer("covenant-analysis")

// Request is one document to analyze.
type Request struct {
	// DocumentID reuses an already stored document id; empty means a new one.
	DocumentID   string              `json:"documentId,omitempty"`
	Name         string              `json:"name"`
	Text         string              `json:"text"`
	ContractType domain.ContractType `json:"contractType"`
	TraceID      string              `json:"traceId,omitempty"`
}

// Analyzer wires the segmenter, evaluator and aggregator together.
type Analyzer struct {
	segmenter *clause.Segmenter
	evaluator *rules.Evaluator
	processor *verdict.Processor
	repo      domain.Repository

	now        func() time.Time
	onComplete func(a *domain.Analysis, elapsed time.Duration)
}

// New creates an analyzer. repo may be nil, in which case nothing is
// persisted.
func New(cfg domain.EngineConfig, evaluator *rules.Evaluator, repo domain.Repository) *Analyzer {
	if evaluator == nil {
		evaluator = rules.NewEvaluator(rules.Default(), cfg, nil)
	}
	return &Analyzer{
		segmenter: clause.NewSegmenter(cfg),
		evaluator: evaluator,
		processor: verdict.NewProcessor(evaluator, cfg),
		repo:      repo,
		now:       time.Now,
	}
}

// OnComplete registers a callback run after every successful analysis.
func (a *Analyzer) OnComplete(fn func(a *domain.Analysis, elapsed time.Duration)) {
	a.onComplete = fn
}

// Evaluator returns the clause evaluator.
func (a *Analyzer) Evaluator() *rules.Evaluator {
	return a.evaluator
}

// Segment splits text without scoring it.
func (a *Analyzer) Segment(text string) ([]domain.Clause, domain.SegmentStrategy) {
	return a.segmenter.Split(text)
}

// Analyze runs the full pipeline. Degenerate input (empty text, unknown
// contract type) produces a valid low-risk analysis; errors come only from
// persistence.
func (a *Analyzer) Analyze(ctx context.Context, tenantID string, req Request) (*domain.Analysis, error) {
	start := a.now()

	ctx, span := tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("contract.type", string(req.ContractType)),
		),
	)
	defer span.End()

	traceID := req.TraceID
	if traceID == "" && span.SpanContext().TraceID().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	audit := newSession(tenantID, req.Name, a.now)
	audit.record(domain.StageDocumentReceived, map[string]any{
		"contract_type": string(req.ContractType),
		"characters":    len(req.Text),
	})

	docID := req.DocumentID
	if docID == "" {
		docID = uuid.New().String()
	}
	doc := &domain.Document{
		ID:           docID,
		TenantID:     tenantID,
		Name:         req.Name,
		ContractType: req.ContractType,
		Text:         req.Text,
		Fingerprint:  clause.DocumentFingerprint(req.Text),
		CreatedAt:    start.UTC(),
	}

	segStart := a.now()
	clauses, strategy := a.segmenter.Split(req.Text)
	segmentMs := a.now().Sub(segStart).Milliseconds()
	audit.record(domain.StageClausesExtracted, map[string]any{
		"clause_count": len(clauses),
		"strategy":     string(strategy),
	})

	entities := entity.Extract(req.Text)
	audit.record(domain.StageEntitiesExtracted, map[string]any{
		"parties":       len(entities.Parties),
		"dates":         len(entities.Dates),
		"amounts":       len(entities.Amounts),
		"jurisdictions": len(entities.Jurisdictions),
	})

	snapshot := a.evaluator.Snapshot()
	digest := snapshot.Digest()

	scoreStart := a.now()
	result := a.processor.WithScorer(snapshot).EvaluateContract(ctx, clauses, req.ContractType)
	scoringMs := a.now().Sub(scoreStart).Milliseconds()
	audit.record(domain.StageRiskScored, map[string]any{
		"score":     result.Score,
		"level":     string(result.Level),
		"escalated": result.Escalated,
	})

	report := a.processor.BuildReport(result, req.ContractType)
	audit.record(domain.StageReportGenerated, map[string]any{
		"high":   report.RiskDistribution.HighRiskClauses,
		"medium": report.RiskDistribution.MediumRiskClauses,
		"low":    report.RiskDistribution.LowRiskClauses,
	})

	analysis := &domain.Analysis{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		DocumentID:   doc.ID,
		SessionID:    audit.s.ID,
		ContractType: req.ContractType,
		CreatedAt:    a.now().UTC(),
		Clauses:      clauses,
		Entities:     entities,
		Result:       result,
		Report:       report,
		Metadata: domain.AnalysisMetadata{
			TraceID:       traceID,
			Strategy:      strategy,
			ClauseCount:   len(clauses),
			SegmentMs:     segmentMs,
			ScoringMs:     scoringMs,
			RuleSetDigest: digest,
			EngineVersion: EngineVersion,
		},
	}

	if err := a.persist(ctx, tenantID, doc, analysis, audit); err != nil {
		span.RecordError(err)
		return nil, err
	}

	elapsed := a.now().Sub(start)
	analysis.Metadata.TotalMs = elapsed.Milliseconds()

	span.SetAttributes(
		attribute.String("analysis.id", analysis.ID),
		attribute.String("risk.level", string(result.Level)),
		attribute.Int("clause.count", len(clauses)),
	)

	slog.Info("contract analyzed",
		"analysis_id", analysis.ID,
		"tenant_id", tenantID,
		"contract_type", req.ContractType,
		"clauses", len(clauses),
		"strategy", strategy,
		"level", result.Level,
		"score", result.Score,
		"duration_ms", elapsed.Milliseconds(),
	)

	if a.onComplete != nil {
		a.onComplete(analysis, elapsed)
	}

	return analysis, nil
}

// persist stores the document, the analysis and the closed audit session.
func (a *Analyzer) persist(ctx context.Context, tenantID string, doc *domain.Document, analysis *domain.Analysis, audit *session) error {
	if a.repo == nil {
		audit.complete()
		return nil
	}

	err := a.repo.SaveDocument(ctx, tenantID, doc)
	if err != nil {
		err = fmt.Errorf("failed to save document: %w", err)
	} else if err = a.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
		err = fmt.Errorf("failed to save analysis: %w", err)
	}

	if err != nil {
		audit.fail(err)
	} else {
		audit.complete()
	}

	if serr := a.repo.SaveAuditSession(ctx, tenantID, audit.s); serr != nil {
		slog.Error("failed to save audit session",
			"session_id", audit.s.ID,
			"tenant_id", tenantID,
			"error", serr,
		)
		if err == nil {
			err = fmt.Errorf("failed to save audit session: %w", serr)
		}
	}

	return err
}
