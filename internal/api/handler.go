package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/repository"
	"github.com/opensource-finance/covenant/internal/rules"
)

// GlobalTenantID is used for rules and profiles that apply to all tenants.
const GlobalTenantID = domain.GlobalTenantID

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	analyzer *analysis.Analyzer
	ruleFile *rules.RuleFile
	version  string
}

// NewHandler creates a new API handler. repo, cache, bus and ruleFile may
// be nil.
func NewHandler(repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, analyzer *analysis.Analyzer, ruleFile *rules.RuleFile, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      eventBus,
		analyzer: analyzer,
		ruleFile: ruleFile,
		version:  version,
	}
}

// AnalyzeRequest is the request body for POST /analyze and POST /documents.
type AnalyzeRequest struct {
	Name         string              `json:"name"`
	Text         string              `json:"text"`
	ContractType domain.ContractType `json:"contractType"`
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	AnalysisID   string                     `json:"analysisId"`
	DocumentID   string                     `json:"documentId"`
	SessionID    string                     `json:"sessionId"`
	ContractType domain.ContractType        `json:"contractType"`
	Report       *domain.RiskReport         `json:"report"`
	Result       *domain.ContractRiskResult `json:"result"`
	Entities     *domain.Entities           `json:"entities"`
	Clauses      []domain.Clause            `json:"clauses,omitempty"`
	Metadata     struct {
		domain.AnalysisMetadata
		Version string `json:"version"`
	} `json:"metadata"`
}

func decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (AnalyzeRequest, bool) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	req.ContractType = domain.ContractType(strings.TrimSpace(string(req.ContractType)))
	if !req.ContractType.Known() {
		slog.Debug("unknown contract type, using neutral weights", "contract_type", req.ContractType)
	}
	return req, true
}

// Analyze handles POST /analyze: a synchronous run of the full pipeline.
// Pass ?clauses=true to include the extracted clauses.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	a, err := h.analyzer.Analyze(ctx, tenantID, analysis.Request{
		Name:         req.Name,
		Text:         req.Text,
		ContractType: req.ContractType,
		TraceID:      GetTraceID(ctx),
	})
	if err != nil {
		slog.Error("analysis failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	resp := AnalyzeResponse{
		AnalysisID:   a.ID,
		DocumentID:   a.DocumentID,
		SessionID:    a.SessionID,
		ContractType: a.ContractType,
		Report:       a.Report,
		Result:       a.Result,
		Entities:     a.Entities,
	}
	if r.URL.Query().Get("clauses") == "true" {
		resp.Clauses = a.Clauses
	}
	resp.Metadata.AnalysisMetadata = a.Metadata
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// SegmentRequest is the request body for POST /segment.
type SegmentRequest struct {
	Text string `json:"text"`
}

// Segment handles POST /segment: clause extraction without scoring.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	clauses, strategy := h.analyzer.Segment(req.Text)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": strategy,
		"count":    len(clauses),
		"clauses":  clauses,
	})
}

// SubmitDocument handles POST /documents: queues a document for the
// async worker and returns 202 with the document id.
func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	ev := domain.SubmissionEvent{
		DocumentID:   uuid.New().String(),
		Name:         req.Name,
		Text:         req.Text,
		ContractType: req.ContractType,
		TraceID:      GetTraceID(ctx),
	}
	if err := bus.PublishEvent(ctx, h.bus, tenantID, domain.TopicDocumentSubmitted, ev); err != nil {
		slog.Error("failed to queue document", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue document")
		return
	}

	slog.Info("document queued", "document_id", ev.DocumentID, "tenant_id", tenantID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"documentId": ev.DocumentID,
		"status":     "queued",
		"traceId":    ev.TraceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check event bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"ruleSet": h.analyzer.Evaluator().RuleSet().Digest(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":         "true",
		"uptimeSeconds": int64(time.Since(startedAt).Seconds()),
	})
}

// GetAnalysis retrieves an analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if !h.requireRepo(w) {
		return
	}

	a, err := h.repo.GetAnalysis(ctx, GetTenantID(ctx), id)
	if err != nil {
		h.lookupFailed(w, "analysis", id, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// GetDocument retrieves a stored document by ID.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if !h.requireRepo(w) {
		return
	}

	doc, err := h.repo.GetDocument(ctx, GetTenantID(ctx), id)
	if err != nil {
		h.lookupFailed(w, "document", id, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetAuditSession retrieves the audit trail of one analysis run.
func (h *Handler) GetAuditSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if !h.requireRepo(w) {
		return
	}

	session, err := h.repo.GetAuditSession(ctx, GetTenantID(ctx), id)
	if err != nil {
		h.lookupFailed(w, "audit session", id, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// ListRules returns the active rule set.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	set := h.analyzer.Evaluator().RuleSet()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  set.Rules(),
		"count":  set.Len(),
		"digest": set.Digest(),
	})
}

// CreateRuleRequest is the request body for creating a custom risk rule.
type CreateRuleRequest struct {
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords"`
	BaseScore   float64  `json:"baseScore"`
	Description string   `json:"description,omitempty"`
	Mitigation  string   `json:"mitigation,omitempty"`
	Condition   string   `json:"condition,omitempty"`
}

// CreateRule validates a custom rule against the active set and saves it
// globally (tenant_id = "*"). A rule with a builtin name overrides it.
// After saving, call POST /rules/reload to apply.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	rule := domain.RiskRule{
		Name:        strings.TrimSpace(req.Name),
		Keywords:    req.Keywords,
		BaseScore:   req.BaseScore,
		Description: req.Description,
		Mitigation:  req.Mitigation,
		Condition:   req.Condition,
	}

	// Validate by building the set the rule would produce
	current := h.analyzer.Evaluator().RuleSet()
	if _, err := rules.NewRuleSet(rules.Merge(current.Rules(), []domain.RiskRule{rule}), current.Profiles()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}

	if !h.requireRepo(w) {
		return
	}
	if err := h.repo.SaveRiskRule(ctx, GlobalTenantID, &rule); err != nil {
		slog.Error("failed to save risk rule", "name", rule.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	slog.Info("risk rule created", "name", rule.Name, "keywords", len(rule.Keywords))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule removes a stored custom rule and auto-reloads the rule set.
// Builtin rules cannot be deleted, only overridden.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	if !h.requireRepo(w) {
		return
	}

	if err := h.repo.DeleteRiskRule(ctx, GlobalTenantID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if rules.IsBuiltin(name) {
				writeError(w, http.StatusBadRequest, "builtin rules cannot be deleted")
				return
			}
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to delete risk rule", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	set, err := h.reload(r)
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
		writeError(w, http.StatusInternalServerError, "rule deleted but reload failed: "+err.Error())
		return
	}

	slog.Info("risk rule deleted", "name", name)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and rule set reloaded.",
		"digest":  set.Digest(),
	})
}

// ReloadRules rebuilds the rule set from the builtin table, the rule pack
// and stored rows, then swaps it in without a restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	set, err := h.reload(r)
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   set.Len(),
		"digest":  set.Digest(),
	})
}

func (h *Handler) reload(r *http.Request) (*rules.RuleSet, error) {
	set, err := rules.FromRepository(r.Context(), h.repo, h.ruleFile)
	if err != nil {
		return nil, err
	}
	h.analyzer.Evaluator().ReloadRuleSet(set)
	slog.Info("rule set reloaded", "count", set.Len(), "digest", set.Digest())
	return set, nil
}

// ListProfiles returns the active contract-type weight matrix.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.analyzer.Evaluator().RuleSet().Profiles()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// ProfileRequest is the request body for PUT /profiles/{contractType}.
type ProfileRequest struct {
	Weights map[string]float64 `json:"weights"`
}

// PutProfile stores weight overrides for one contract type.
// After saving, call POST /rules/reload to apply.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contractType := domain.ContractType(chi.URLParam(r, "contractType"))

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, "at least one weight is required")
		return
	}

	profile := domain.ContractProfile{ContractType: contractType, Weights: req.Weights}

	current := h.analyzer.Evaluator().RuleSet()
	merged := rules.MergeProfiles(current.Profiles(), []domain.ContractProfile{profile})
	if _, err := rules.NewRuleSet(current.Rules(), merged); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile: "+err.Error())
		return
	}

	if !h.requireRepo(w) {
		return
	}
	if err := h.repo.SaveContractProfile(ctx, GlobalTenantID, &profile); err != nil {
		slog.Error("failed to save contract profile", "contract_type", contractType, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	slog.Info("contract profile saved", "contract_type", contractType, "weights", len(req.Weights))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
		"message": "Profile saved. Call POST /rules/reload to apply changes.",
	})
}

func (h *Handler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return false
	}
	return true
}

func (h *Handler) lookupFailed(w http.ResponseWriter, kind, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, kind+" not found")
		return
	}
	slog.Error("failed to get "+kind, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to get "+kind)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var startedAt = time.Now()
