package rules

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/covenant/internal/clause"
	"github.com/opensource-finance/covenant/internal/domain"
)

// mapCache is an in-memory domain.Cache for evaluator tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]domain.ClauseRiskResult
	fail    bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]domain.ClauseRiskResult)}
}

func (c *mapCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	return nil, nil
}

func (c *mapCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (c *mapCache) Delete(ctx context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, namespace+":"+key)
	return nil
}

func (c *mapCache) GetClauseRisk(ctx context.Context, namespace, key string) (*domain.ClauseRiskResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	r, ok := c.entries[namespace+":"+key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (c *mapCache) SetClauseRisk(ctx context.Context, namespace, key string, result *domain.ClauseRiskResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.entries[namespace+":"+key] = *result
	return nil
}

func (c *mapCache) Ping(ctx context.Context) error { return nil }
func (c *mapCache) Close() error                   { return nil }

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newClause(text string) domain.Clause {
	return domain.Clause{ID: clause.ID(text), Number: "1", Type: clause.InferType(text), FullText: text}
}

func TestScoreKeywordScenario(t *testing.T) {
	c := newClause("Employee shall be liable for unlimited liability for all damages")
	r := Score(Default(), domain.DefaultEngineConfig(), c, domain.ContractVendor)

	if len(r.RiskFactors) != 1 {
		t.Fatalf("expected 1 factor, got %d: %+v", len(r.RiskFactors), r.RiskFactors)
	}
	f := r.RiskFactors[0]
	if f.Risk != "unlimited_liability" {
		t.Errorf("expected unlimited_liability, got %s", f.Risk)
	}
	if f.Weight != 2.2 {
		t.Errorf("expected weight 2.2, got %v", f.Weight)
	}
	if math.Abs(f.Contribution-66) > 1e-9 {
		t.Errorf("expected contribution 66, got %v", f.Contribution)
	}
	if f.Description != "Unlimited financial exposure" || f.Mitigation != "Add liability cap" {
		t.Errorf("unexpected advice: %+v", f)
	}
	if r.Score != 66 {
		t.Errorf("expected score 66, got %v", r.Score)
	}
	if r.Level != domain.SeverityMedium {
		t.Errorf("expected Medium, got %s", r.Level)
	}
	if r.ClauseID != c.ID || r.ClauseType != domain.ClauseLimitationOfLiability {
		t.Errorf("clause identity not carried: %+v", r)
	}
}

func TestScoreEmptyText(t *testing.T) {
	r := Score(Default(), domain.DefaultEngineConfig(), domain.Clause{ID: "empty"}, domain.ContractVendor)

	if r.Score != 0 || r.Level != domain.SeverityLow {
		t.Errorf("expected 0/Low, got %v/%s", r.Score, r.Level)
	}
	if r.RiskFactors == nil || len(r.RiskFactors) != 0 {
		t.Errorf("expected empty non-nil factors, got %v", r.RiskFactors)
	}
}

func TestScoreThresholds(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	set := Default()

	tests := []struct {
		name  string
		text  string
		ct    domain.ContractType
		score float64
		level domain.Severity
	}{
		{"exactly 70 is high", "The company may terminate without cause and impose a penalty with unlimited liability.", domain.ContractLease, 70, domain.SeverityHigh},
		{"two small factors stay low", "A penalty applies and the deposit is subject to lock-in and a further fine.", domain.ContractEmployment, 30, domain.SeverityLow},
		{"exactly 40 is medium", "The supplier shall indemnify the buyer.", domain.ContractVendor, 40, domain.SeverityMedium},
		{"unknown contract type", "The supplier shall indemnify the buyer.", "franchise_agreement", 20, domain.SeverityLow},
		{"case insensitive", "UNLIMITED LIABILITY applies.", domain.ContractService, 60, domain.SeverityMedium},
		{"no factor", "The parties shall cooperate in good faith.", domain.ContractVendor, 0, domain.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(set, cfg, newClause(tt.text), tt.ct)
			if r.Score != tt.score {
				t.Errorf("expected score %v, got %v", tt.score, r.Score)
			}
			if r.Level != tt.level {
				t.Errorf("expected level %s, got %s", tt.level, r.Level)
			}
		})
	}
}

func TestScoreClampsAt100(t *testing.T) {
	text := "penalty indemnify terminate without cause foreign jurisdiction auto renew non compete unlimited liability"
	r := Score(Default(), domain.DefaultEngineConfig(), newClause(text), domain.ContractVendor)

	if len(r.RiskFactors) != 7 {
		t.Fatalf("expected all 7 factors, got %d", len(r.RiskFactors))
	}
	if r.Score != 100 {
		t.Errorf("expected clamped score 100, got %v", r.Score)
	}
	if r.Level != domain.SeverityHigh {
		t.Errorf("expected High, got %s", r.Level)
	}

	// Factors follow rule order.
	for i, name := range []string{"penalty", "indemnity", "unilateral_termination"} {
		if r.RiskFactors[i].Risk != name {
			t.Errorf("factor %d: expected %s, got %s", i, name, r.RiskFactors[i].Risk)
		}
	}
}

func TestScoreLevelUsesUnroundedTotal(t *testing.T) {
	set, err := NewRuleSet([]domain.RiskRule{
		{Name: "near_high", Keywords: []string{"exclusive supplier"}, BaseScore: 69.996},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := Score(set, domain.DefaultEngineConfig(), newClause("The vendor is the exclusive supplier."), domain.ContractVendor)

	if r.Score != 70 {
		t.Errorf("expected reported score 70, got %v", r.Score)
	}
	if r.Level != domain.SeverityMedium {
		t.Errorf("expected Medium for a total below 70, got %s", r.Level)
	}
}

func TestScoreMonotonic(t *testing.T) {
	set := Default()
	cfg := domain.DefaultEngineConfig()
	base := "The vendor shall indemnify the buyer and pay a penalty."

	before := Score(set, cfg, newClause(base), domain.ContractVendor)
	after := Score(set, cfg, newClause(base+" A further penalty applies."), domain.ContractVendor)

	if after.Score < before.Score {
		t.Errorf("repeating a keyword decreased the score: %v -> %v", before.Score, after.Score)
	}
}

func TestScoreCondition(t *testing.T) {
	rules := append(DefaultRules(), domain.RiskRule{
		Name:        "exclusivity",
		Keywords:    []string{"exclusive"},
		BaseScore:   15,
		Description: "Exclusive dealing",
		Mitigation:  "Limit exclusivity",
		Condition:   `contract_type == "vendor_contract" && !text.contains("non-exclusive licence")`,
	})
	set, err := NewRuleSet(rules, DefaultProfiles())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := domain.DefaultEngineConfig()

	vendor := Score(set, cfg, newClause("The buyer appoints the vendor as exclusive supplier."), domain.ContractVendor)
	if vendor.Score != 15 {
		t.Errorf("expected condition to allow rule, got score %v", vendor.Score)
	}

	lease := Score(set, cfg, newClause("The buyer appoints the vendor as exclusive supplier."), domain.ContractLease)
	if lease.Score != 0 {
		t.Errorf("expected condition to block rule, got score %v", lease.Score)
	}

	blocked := Score(set, cfg, newClause("A non-exclusive licence is granted."), domain.ContractVendor)
	if blocked.Score != 0 {
		t.Errorf("expected text guard to block rule, got score %v", blocked.Score)
	}
}

func TestEvaluatorWithoutCache(t *testing.T) {
	e := NewEvaluator(nil, domain.DefaultEngineConfig(), nil)
	c := newClause("The supplier shall indemnify the buyer.")

	first := e.EvaluateClause(context.Background(), c, domain.ContractVendor)
	second := e.EvaluateClause(context.Background(), c, domain.ContractVendor)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestEvaluatorCache(t *testing.T) {
	cache := newMapCache()
	e := NewEvaluator(Default(), domain.DefaultEngineConfig(), cache)

	var hits, misses int32
	e.OnCacheLookup(func(hit bool) {
		if hit {
			atomic.AddInt32(&hits, 1)
		} else {
			atomic.AddInt32(&misses, 1)
		}
	})

	c := newClause("Employee shall be liable for unlimited liability for all damages")
	first := e.EvaluateClause(context.Background(), c, domain.ContractVendor)
	second := e.EvaluateClause(context.Background(), c, domain.ContractVendor)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
	if cache.len() != 1 {
		t.Errorf("expected 1 cache entry, got %d", cache.len())
	}

	// Same text under another clause identity reuses the entry but keeps its own id.
	other := c
	other.ID = "other-id"
	r := e.EvaluateClause(context.Background(), other, domain.ContractVendor)
	if r.ClauseID != "other-id" {
		t.Errorf("expected clause id from caller, got %s", r.ClauseID)
	}
	if r.Score != first.Score {
		t.Errorf("expected cached score %v, got %v", first.Score, r.Score)
	}

	// Another contract type is another key.
	e.EvaluateClause(context.Background(), c, domain.ContractLease)
	if cache.len() != 2 {
		t.Errorf("expected 2 cache entries, got %d", cache.len())
	}
}

func TestEvaluatorCacheFailureIsIgnored(t *testing.T) {
	cache := newMapCache()
	cache.fail = true
	e := NewEvaluator(Default(), domain.DefaultEngineConfig(), cache)

	c := newClause("The supplier shall indemnify the buyer.")
	r := e.EvaluateClause(context.Background(), c, domain.ContractVendor)

	if r.Score != 40 {
		t.Errorf("expected score 40 with failing cache, got %v", r.Score)
	}
}

func TestEvaluatorReloadChangesNamespace(t *testing.T) {
	cache := newMapCache()
	e := NewEvaluator(Default(), domain.DefaultEngineConfig(), cache)
	c := newClause("The supplier shall indemnify the buyer.")

	before := e.EvaluateClause(context.Background(), c, domain.ContractVendor)

	heavier := MergeProfiles(DefaultProfiles(), []domain.ContractProfile{
		{ContractType: domain.ContractVendor, Weights: map[string]float64{"indemnity": 3.0}},
	})
	set, err := NewRuleSet(DefaultRules(), heavier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.ReloadRuleSet(set)

	after := e.EvaluateClause(context.Background(), c, domain.ContractVendor)
	if before.Score != 40 || after.Score != 60 {
		t.Errorf("expected 40 then 60, got %v then %v", before.Score, after.Score)
	}
	if e.RuleSet().Digest() != set.Digest() {
		t.Error("expected reloaded rule set to be active")
	}
}

func TestSnapshotIgnoresLaterReload(t *testing.T) {
	e := NewEvaluator(Default(), domain.DefaultEngineConfig(), newMapCache())
	c := newClause("The supplier shall indemnify the buyer.")

	snap := e.Snapshot()

	heavier := MergeProfiles(DefaultProfiles(), []domain.ContractProfile{
		{ContractType: domain.ContractVendor, Weights: map[string]float64{"indemnity": 3.0}},
	})
	set, err := NewRuleSet(DefaultRules(), heavier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.ReloadRuleSet(set)

	if snap.Digest() != Default().Digest() {
		t.Errorf("snapshot digest changed after reload: %s", snap.Digest())
	}
	if snap.RuleSet() == e.RuleSet() {
		t.Error("snapshot should keep the rule set it was taken with")
	}

	results := snap.EvaluateAll(context.Background(), []domain.Clause{c}, domain.ContractVendor)
	if results[0].Score != 40 {
		t.Errorf("expected snapshot score 40, got %v", results[0].Score)
	}
	if r := e.EvaluateClause(context.Background(), c, domain.ContractVendor); r.Score != 60 {
		t.Errorf("expected evaluator score 60 after reload, got %v", r.Score)
	}
}

func TestEvaluateAllPreservesOrder(t *testing.T) {
	e := NewEvaluator(Default(), domain.DefaultEngineConfig(), newMapCache())

	texts := []string{
		"The supplier shall indemnify the buyer.",
		"The parties shall cooperate.",
		"Unlimited liability applies to all damages.",
		"A penalty is payable on breach.",
	}
	var clauses []domain.Clause
	for i := 0; i < 25; i++ {
		text := fmt.Sprintf("%s (%d)", texts[i%len(texts)], i)
		clauses = append(clauses, newClause(text))
	}

	results := e.EvaluateAll(context.Background(), clauses, domain.ContractVendor)
	if len(results) != len(clauses) {
		t.Fatalf("expected %d results, got %d", len(clauses), len(results))
	}
	for i, r := range results {
		if r.ClauseID != clauses[i].ID {
			t.Errorf("result %d out of order", i)
		}
		want := Score(Default(), domain.DefaultEngineConfig(), clauses[i], domain.ContractVendor)
		if r.Score != want.Score {
			t.Errorf("result %d: expected %v, got %v", i, want.Score, r.Score)
		}
	}
}

func TestEvaluateAllEmpty(t *testing.T) {
	e := NewEvaluator(nil, domain.DefaultEngineConfig(), nil)
	results := e.EvaluateAll(context.Background(), nil, domain.ContractVendor)
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", results)
	}
}
