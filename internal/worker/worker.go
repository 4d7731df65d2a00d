// Package worker provides async document analysis for the Pro tier.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/verdict"
)

// Worker analyzes documents submitted on the EventBus and publishes
// completion and alert events.
type Worker struct {
	bus      domain.EventBus
	analyzer *analysis.Analyzer

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
	alerts    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all tenants via
	// the wildcard subscription)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, analyzer *analysis.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		if err := w.subscribe(domain.GlobalTenantID); err != nil {
			return err
		}
		slog.Info("global worker started", "topic", domain.TopicDocumentSubmitted)
		return nil
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.subscribe(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		slog.Info("tenant worker started",
			"tenant_id", tenantID,
			"topic", domain.TopicDocumentSubmitted,
		)
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicDocumentSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()
	return nil
}

// handleMessage analyzes one submitted document. The message tenant is
// authoritative, so wildcard subscriptions route results correctly.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()
	tenantID := msg.TenantID

	var ev domain.SubmissionEvent
	if err := bus.DecodeEvent(msg, &ev); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse submission",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := ev.TraceID
	if traceID == "" {
		traceID = msg.Metadata["trace_id"]
	}
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing submission",
		"document_name", ev.Name,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	a, err := w.analyzer.Analyze(ctx, tenantID, analysis.Request{
		DocumentID:   ev.DocumentID,
		Name:         ev.Name,
		Text:         ev.Text,
		ContractType: ev.ContractType,
		TraceID:      traceID,
	})
	if err != nil {
		w.failed.Add(1)
		slog.Error("analysis failed",
			"document_name", ev.Name,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	w.processed.Add(1)

	done := CompletionEvent(a)
	if err := bus.PublishEvent(ctx, w.bus, tenantID, domain.TopicAnalysisCompleted, done); err != nil {
		slog.Error("failed to publish completion",
			"analysis_id", a.ID,
			"error", err,
		)
	}

	if verdict.ShouldAlert(a.Result) {
		w.alerts.Add(1)
		if err := bus.PublishEvent(ctx, w.bus, tenantID, domain.TopicRiskAlert, AlertEvent(a)); err != nil {
			slog.Error("failed to publish alert",
				"analysis_id", a.ID,
				"error", err,
			)
		}
	}

	slog.Info("submission processed",
		"analysis_id", a.ID,
		"tenant_id", tenantID,
		"level", done.Level,
		"score", done.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// CompletionEvent summarizes an analysis for the completion topic.
func CompletionEvent(a *domain.Analysis) domain.CompletionEvent {
	ev := domain.CompletionEvent{
		AnalysisID:    a.ID,
		DocumentID:    a.DocumentID,
		SessionID:     a.SessionID,
		ContractType:  a.ContractType,
		Level:         domain.SeverityLow,
		ClauseCount:   a.Metadata.ClauseCount,
		RuleSetDigest: a.Metadata.RuleSetDigest,
		TraceID:       a.Metadata.TraceID,
	}
	if a.Result != nil {
		ev.Level = a.Result.Level
		ev.Score = a.Result.Score
		ev.Escalated = a.Result.Escalated
	}
	return ev
}

// AlertEvent builds the alert payload for a high-risk analysis.
func AlertEvent(a *domain.Analysis) domain.AlertEvent {
	ev := domain.AlertEvent{
		CompletionEvent: CompletionEvent(a),
		HighRiskClauses: []domain.ClauseRiskResult{},
		KeyRiskAreas:    []domain.KeyRiskArea{},
		Mitigations:     verdict.Mitigations(a.Result),
	}
	if a.Result != nil {
		ev.HighRiskClauses = a.Result.HighRiskClauses
	}
	if a.Report != nil {
		ev.KeyRiskAreas = a.Report.KeyRiskAreas
	}
	return ev
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
	Alerts            int64    `json:"alerts"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
		Alerts:            w.alerts.Load(),
	}
}
