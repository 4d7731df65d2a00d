package rules

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/covenant/internal/clause"
	"github.com/opensource-finance/covenant/internal/domain"
)

// Evaluator scores clauses against the active rule set.
// Scoring is a pure function of clause text and contract type; the cache
// is an optional accelerator keyed by a fingerprint of both.
type Evaluator struct {
	mu         sync.RWMutex
	set        *RuleSet
	cfg        domain.EngineConfig
	cache      domain.Cache
	cacheTTL   time.Duration
	maxWorkers int
	observer   func(hit bool)
}

// NewEvaluator creates an evaluator. cache may be nil.
func NewEvaluator(set *RuleSet, cfg domain.EngineConfig, cache domain.Cache) *Evaluator {
	if set == nil {
		set = Default()
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Evaluator{
		set:        set,
		cfg:        cfg,
		cache:      cache,
		maxWorkers: maxWorkers,
	}
}

// SetCacheTTL sets the lifetime of cached results. Zero means no expiry.
func (e *Evaluator) SetCacheTTL(ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheTTL = ttl
}

// OnCacheLookup registers a callback invoked after each cache lookup.
func (e *Evaluator) OnCacheLookup(fn func(hit bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

// RuleSet returns the active rule set.
func (e *Evaluator) RuleSet() *RuleSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set
}

// ReloadRuleSet swaps the active rule set. Evaluations already running
// finish against the set they started with.
func (e *Evaluator) ReloadRuleSet(set *RuleSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = set
}

// Snapshot pins the active rule set and cache settings so that a batch of
// clauses is scored, and reported, under one rule set.
type Snapshot struct {
	set        *RuleSet
	cfg        domain.EngineConfig
	cache      domain.Cache
	cacheTTL   time.Duration
	maxWorkers int
	observer   func(hit bool)
}

// Snapshot captures the current rule set. Later reloads do not affect it.
func (e *Evaluator) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Snapshot{
		set:        e.set,
		cfg:        e.cfg,
		cache:      e.cache,
		cacheTTL:   e.cacheTTL,
		maxWorkers: e.maxWorkers,
		observer:   e.observer,
	}
}

// EvaluateClause scores one clause. Empty text scores 0 (Low).
func (e *Evaluator) EvaluateClause(ctx context.Context, c domain.Clause, contractType domain.ContractType) domain.ClauseRiskResult {
	return e.Snapshot().EvaluateClause(ctx, c, contractType)
}

// EvaluateAll scores clauses in parallel against the current rule set.
func (e *Evaluator) EvaluateAll(ctx context.Context, clauses []domain.Clause, contractType domain.ContractType) []domain.ClauseRiskResult {
	return e.Snapshot().EvaluateAll(ctx, clauses, contractType)
}

// RuleSet returns the pinned rule set.
func (s *Snapshot) RuleSet() *RuleSet {
	return s.set
}

// Digest returns the digest of the pinned rule set.
func (s *Snapshot) Digest() string {
	return s.set.Digest()
}

// EvaluateClause scores one clause under the pinned rule set.
func (s *Snapshot) EvaluateClause(ctx context.Context, c domain.Clause, contractType domain.ContractType) domain.ClauseRiskResult {
	return s.evaluate(ctx, c, contractType)
}

// EvaluateAll scores clauses in parallel and returns results in clause
// order.
func (s *Snapshot) EvaluateAll(ctx context.Context, clauses []domain.Clause, contractType domain.ContractType) []domain.ClauseRiskResult {
	results := make([]domain.ClauseRiskResult, len(clauses))
	if len(clauses) == 0 {
		return results
	}

	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, s.maxWorkers)

	for i := range clauses {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = s.evaluate(ctx, clauses[idx], contractType)
		}(i)
	}

	wg.Wait()

	return results
}

func (s *Snapshot) evaluate(ctx context.Context, c domain.Clause, contractType domain.ContractType) domain.ClauseRiskResult {
	if s.cache == nil {
		return Score(s.set, s.cfg, c, contractType)
	}

	key := clause.RiskKey(c.FullText, contractType)
	cached, err := s.cache.GetClauseRisk(ctx, s.set.Digest(), key)
	if err != nil {
		slog.Debug("clause risk cache read failed", "clause_id", c.ID, "error", err)
	}
	if s.observer != nil {
		s.observer(cached != nil)
	}
	if cached != nil {
		result := *cached
		result.ClauseID = c.ID
		result.ClauseType = c.Type
		return result
	}

	result := Score(s.set, s.cfg, c, contractType)
	if err := s.cache.SetClauseRisk(ctx, s.set.Digest(), key, &result, s.cacheTTL); err != nil {
		slog.Debug("clause risk cache write failed", "clause_id", c.ID, "error", err)
	}
	return result
}

// Score applies every rule whose keywords occur in the clause text and sums
// base score times contract weight. The level comes from the clamped total;
// the reported score is rounded.
func Score(set *RuleSet, cfg domain.EngineConfig, c domain.Clause, contractType domain.ContractType) domain.ClauseRiskResult {
	text := strings.ToLower(c.FullText)

	result := domain.ClauseRiskResult{
		ClauseID:    c.ID,
		ClauseType:  c.Type,
		RiskFactors: []domain.TriggeredFactor{},
	}

	var activation map[string]any
	total := 0.0
	for _, r := range set.rules {
		if !matchesAny(text, r.rule.Keywords) {
			continue
		}
		if r.condition != nil {
			if activation == nil {
				activation = map[string]any{
					"text":          text,
					"clause_type":   string(clause.InferType(text)),
					"contract_type": string(contractType),
				}
			}
			if !r.condition.allows(activation) {
				continue
			}
		}

		weight := set.Weight(contractType, r.rule.Name)
		contribution := r.rule.BaseScore * weight
		total += contribution

		result.RiskFactors = append(result.RiskFactors, domain.TriggeredFactor{
			Risk:         r.rule.Name,
			Description:  r.rule.Description,
			Mitigation:   r.rule.Mitigation,
			Weight:       weight,
			Contribution: contribution,
		})
	}

	clamped := cfg.Clamp(total)
	result.Level = cfg.ClauseLevel(clamped)
	result.Score = domain.Round(clamped)
	return result
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
