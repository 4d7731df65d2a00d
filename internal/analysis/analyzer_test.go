package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/rules"
)

// memRepo is an in-memory domain.Repository.
type memRepo struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	analyses  map[string]*domain.Analysis
	sessions  map[string]*domain.AuditSession
	failSaves bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:     make(map[string]*domain.Document),
		analyses: make(map[string]*domain.Analysis),
		sessions: make(map[string]*domain.AuditSession),
	}
}

func (r *memRepo) SaveDocument(ctx context.Context, tenantID string, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaves {
		return errors.New("disk full")
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *memRepo) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id], nil
}

func (r *memRepo) SaveAnalysis(ctx context.Context, tenantID string, a *domain.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[a.ID] = a
	return nil
}

func (r *memRepo) GetAnalysis(ctx context.Context, tenantID, id string) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyses[id], nil
}

func (r *memRepo) SaveRiskRule(ctx context.Context, tenantID string, rule *domain.RiskRule) error {
	return nil
}

func (r *memRepo) ListRiskRules(ctx context.Context, tenantID string) ([]*domain.RiskRule, error) {
	return nil, nil
}

func (r *memRepo) DeleteRiskRule(ctx context.Context, tenantID, name string) error { return nil }

func (r *memRepo) SaveContractProfile(ctx context.Context, tenantID string, p *domain.ContractProfile) error {
	return nil
}

func (r *memRepo) ListContractProfiles(ctx context.Context, tenantID string) ([]*domain.ContractProfile, error) {
	return nil, nil
}

func (r *memRepo) SaveAuditSession(ctx context.Context, tenantID string, s *domain.AuditSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *memRepo) GetAuditSession(ctx context.Context, tenantID, id string) (*domain.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *memRepo) Ping(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                   { return nil }

const vendorContract = `1. Scope
The Vendor supplies hardware to the Buyer.

2. Liability
The Vendor accepts unlimited liability for all damages.

3. Indemnity
The Vendor shall indemnify and hold harmless the Buyer.

4. Penalty
Late delivery attracts liquidated damages as a penalty.`

func stages(s *domain.AuditSession) []string {
	out := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		out = append(out, e.Stage)
	}
	return out
}

func TestAnalyze(t *testing.T) {
	repo := newMemRepo()
	a := New(domain.DefaultEngineConfig(), nil, repo)

	var completed *domain.Analysis
	a.OnComplete(func(an *domain.Analysis, _ time.Duration) { completed = an })

	got, err := a.Analyze(context.Background(), "tenant-1", Request{
		Name:         "vendor.txt",
		Text:         vendorContract,
		ContractType: domain.ContractVendor,
	})
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Len(t, got.Clauses, 4)
	assert.Equal(t, domain.StrategyNumbered, got.Metadata.Strategy)
	assert.Equal(t, 4, got.Metadata.ClauseCount)
	assert.Equal(t, EngineVersion, got.Metadata.EngineVersion)
	assert.Equal(t, a.Evaluator().RuleSet().Digest(), got.Metadata.RuleSetDigest)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.ClauseResults, 4)

	// unlimited_liability 66, indemnity 40, penalty 32.4
	assert.Equal(t, 66.0, got.Result.ClauseResults[1].Score)
	assert.Equal(t, 40.0, got.Result.ClauseResults[2].Score)
	assert.Equal(t, 32.4, got.Result.ClauseResults[3].Score)
	assert.Equal(t, 34.6, got.Result.Score)
	assert.Equal(t, domain.SeverityMedium, got.Result.Level)

	require.NotNil(t, got.Entities)
	assert.Empty(t, got.Entities.Parties)
	assert.Equal(t, []string{"2. Liability The Vendor accepts unlimited liability for all damages."},
		got.Entities.Provisions[domain.ProvisionLiability])
	assert.Equal(t, []string{"4. Penalty Late delivery attracts liquidated damages as a penalty."},
		got.Entities.Provisions[domain.ProvisionPenalty])

	require.NotNil(t, got.Report)
	assert.Equal(t, 4, got.Report.RiskDistribution.TotalClauses)
	assert.Equal(t, got.Result.Score, got.Report.OverallRisk.Score)

	assert.Same(t, got, completed)

	doc := repo.docs[got.DocumentID]
	require.NotNil(t, doc)
	assert.Equal(t, "vendor.txt", doc.Name)
	assert.Len(t, doc.Fingerprint, 64)

	assert.Same(t, got, repo.analyses[got.ID])

	session := repo.sessions[got.SessionID]
	require.NotNil(t, session)
	assert.Equal(t, domain.SessionCompleted, session.Status)
	assert.NotNil(t, session.CompletedAt)
	assert.Equal(t, []string{
		domain.StageDocumentReceived,
		domain.StageClausesExtracted,
		domain.StageEntitiesExtracted,
		domain.StageRiskScored,
		domain.StageReportGenerated,
	}, stages(session))
}

func TestAnalyze_DigestMatchesScoringRuleSet(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	original := rules.Default()
	heavier, err := rules.NewRuleSet(rules.DefaultRules(), rules.MergeProfiles(rules.DefaultProfiles(), []domain.ContractProfile{
		{ContractType: domain.ContractVendor, Weights: map[string]float64{"indemnity": 3.0}},
	}))
	require.NoError(t, err)

	evaluator := rules.NewEvaluator(original, cfg, cache.NewLRUCache(100))

	// Reload while the clauses are being scored.
	var once sync.Once
	evaluator.OnCacheLookup(func(bool) {
		once.Do(func() { evaluator.ReloadRuleSet(heavier) })
	})

	got, err := New(cfg, evaluator, nil).Analyze(context.Background(), "tenant-1", Request{
		Text:         vendorContract,
		ContractType: domain.ContractVendor,
	})
	require.NoError(t, err)

	assert.Equal(t, original.Digest(), got.Metadata.RuleSetDigest)
	assert.Equal(t, 40.0, got.Result.ClauseResults[2].Score)
	assert.Equal(t, heavier.Digest(), evaluator.RuleSet().Digest())
}

func TestAnalyze_EmptyText(t *testing.T) {
	a := New(domain.DefaultEngineConfig(), nil, nil)

	got, err := a.Analyze(context.Background(), "tenant-1", Request{ContractType: domain.ContractLease})
	require.NoError(t, err)

	assert.Empty(t, got.Clauses)
	assert.Equal(t, 0.0, got.Result.Score)
	assert.Equal(t, domain.SeverityLow, got.Result.Level)
	assert.Empty(t, got.Report.KeyRiskAreas)
}

func TestAnalyze_UnknownContractType(t *testing.T) {
	a := New(domain.DefaultEngineConfig(), nil, nil)

	got, err := a.Analyze(context.Background(), "tenant-1", Request{Text: vendorContract, ContractType: "franchise_agreement"})
	require.NoError(t, err)

	// Every factor weighs 1.0: 30, 20, 18.
	assert.Equal(t, 30.0, got.Result.ClauseResults[1].Score)
	assert.Equal(t, 20.0, got.Result.ClauseResults[2].Score)
	assert.Equal(t, 18.0, got.Result.ClauseResults[3].Score)
}

func TestAnalyze_KeepsDocumentID(t *testing.T) {
	repo := newMemRepo()
	a := New(domain.DefaultEngineConfig(), nil, repo)

	got, err := a.Analyze(context.Background(), "tenant-1", Request{DocumentID: "doc-42", Text: vendorContract, ContractType: domain.ContractVendor})
	require.NoError(t, err)
	assert.Equal(t, "doc-42", got.DocumentID)
	assert.Contains(t, repo.docs, "doc-42")
}

func TestAnalyze_PersistFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failSaves = true
	a := New(domain.DefaultEngineConfig(), nil, repo)

	_, err := a.Analyze(context.Background(), "tenant-1", Request{Text: vendorContract, ContractType: domain.ContractVendor})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to save document"))

	require.Len(t, repo.sessions, 1)
	for _, s := range repo.sessions {
		assert.Equal(t, domain.SessionFailed, s.Status)
		assert.Equal(t, domain.StageError, s.Events[len(s.Events)-1].Stage)
	}
}

func TestSegment(t *testing.T) {
	a := New(domain.DefaultEngineConfig(), nil, nil)

	clauses, strategy := a.Segment(vendorContract)
	assert.Len(t, clauses, 4)
	assert.Equal(t, domain.StrategyNumbered, strategy)
}
