// Package verdict aggregates clause risk results into a document verdict.
package verdict

import (
	"context"
	"sort"

	"github.com/opensource-finance/covenant/internal/domain"
)

// ClauseScorer scores every clause of a document. Implementations must
// return one result per clause, in clause order.
type ClauseScorer interface {
	EvaluateAll(ctx context.Context, clauses []domain.Clause, contractType domain.ContractType) []domain.ClauseRiskResult
}

// Processor reduces clause scores to a contract-level verdict.
type Processor struct {
	scorer ClauseScorer
	cfg    domain.EngineConfig
}

// NewProcessor creates a processor. scorer may be nil when only Aggregate
// and BuildReport are used.
func NewProcessor(scorer ClauseScorer, cfg domain.EngineConfig) *Processor {
	return &Processor{scorer: scorer, cfg: cfg}
}

// WithScorer returns a copy of the processor that scores with scorer.
func (p *Processor) WithScorer(scorer ClauseScorer) *Processor {
	return &Processor{scorer: scorer, cfg: p.cfg}
}

// EvaluateContract scores every clause (fan-out) and aggregates once all
// of them are done (fan-in).
func (p *Processor) EvaluateContract(ctx context.Context, clauses []domain.Clause, contractType domain.ContractType) *domain.ContractRiskResult {
	var results []domain.ClauseRiskResult
	if len(clauses) > 0 && p.scorer != nil {
		results = p.scorer.EvaluateAll(ctx, clauses, contractType)
	}
	return p.Aggregate(contractType, results)
}

// Aggregate combines clause results. The document score is the mean clause
// score, escalated when enough clauses are High, then clamped. An empty
// result list yields a zero, Low verdict.
func (p *Processor) Aggregate(contractType domain.ContractType, results []domain.ClauseRiskResult) *domain.ContractRiskResult {
	res := &domain.ContractRiskResult{
		ContractType:      contractType,
		HighRiskClauses:   []domain.ClauseRiskResult{},
		MediumRiskClauses: []domain.ClauseRiskResult{},
		RiskFactors:       map[string]domain.FactorFrequency{},
		ClauseResults:     results,
	}
	if res.ClauseResults == nil {
		res.ClauseResults = []domain.ClauseRiskResult{}
	}

	total := 0.0
	for _, r := range results {
		total += r.Score

		switch r.Level {
		case domain.SeverityHigh:
			res.HighCount++
			if len(res.HighRiskClauses) < p.cfg.TopHighClauses {
				res.HighRiskClauses = append(res.HighRiskClauses, r)
			}
		case domain.SeverityMedium:
			res.MediumCount++
			if len(res.MediumRiskClauses) < p.cfg.TopMediumClauses {
				res.MediumRiskClauses = append(res.MediumRiskClauses, r)
			}
		default:
			res.LowCount++
		}

		for _, f := range r.RiskFactors {
			freq, ok := res.RiskFactors[f.Risk]
			if !ok {
				freq = domain.FactorFrequency{Description: f.Description, Mitigation: f.Mitigation}
			}
			freq.Count++
			res.RiskFactors[f.Risk] = freq
		}
	}

	score := 0.0
	if len(results) > 0 {
		score = total / float64(len(results))
	}
	if p.cfg.EscalationHighCount > 0 && res.HighCount >= p.cfg.EscalationHighCount {
		score *= p.cfg.EscalationFactor
		res.Escalated = true
	}

	clamped := p.cfg.Clamp(score)
	res.Level = p.cfg.ContractLevel(clamped)
	res.Score = domain.Round(clamped)

	return res
}

// BuildReport produces the view consumed by report rendering and audit
// logging.
func (p *Processor) BuildReport(res *domain.ContractRiskResult, contractType domain.ContractType) *domain.RiskReport {
	if res == nil {
		res = p.Aggregate(contractType, nil)
	}

	return &domain.RiskReport{
		ContractType: contractType,
		OverallRisk: domain.OverallRisk{
			Level: res.Level,
			Score: res.Score,
		},
		RiskDistribution: domain.RiskDistribution{
			HighRiskClauses:   res.HighCount,
			MediumRiskClauses: res.MediumCount,
			LowRiskClauses:    res.LowCount,
			TotalClauses:      res.HighCount + res.MediumCount + res.LowCount,
		},
		KeyRiskAreas:      KeyRiskAreas(res.RiskFactors, p.cfg.KeyRiskAreas),
		HighRiskClauses:   res.HighRiskClauses,
		MediumRiskClauses: res.MediumRiskClauses,
	}
}

// KeyRiskAreas ranks factors by frequency, ties broken by name. A limit
// of zero or less keeps every factor.
func KeyRiskAreas(factors map[string]domain.FactorFrequency, limit int) []domain.KeyRiskArea {
	areas := make([]domain.KeyRiskArea, 0, len(factors))
	for name, f := range factors {
		areas = append(areas, domain.KeyRiskArea{
			RiskArea:    name,
			Description: f.Description,
			Mitigation:  f.Mitigation,
			Frequency:   f.Count,
		})
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Frequency != areas[j].Frequency {
			return areas[i].Frequency > areas[j].Frequency
		}
		return areas[i].RiskArea < areas[j].RiskArea
	})

	if limit > 0 && len(areas) > limit {
		areas = areas[:limit]
	}
	return areas
}

// ShouldAlert reports whether a verdict warrants a risk alert.
func ShouldAlert(res *domain.ContractRiskResult) bool {
	return res != nil && res.Level == domain.SeverityHigh
}

// Mitigations lists the suggested mitigation of every triggered factor,
// most frequent first.
func Mitigations(res *domain.ContractRiskResult) []string {
	if res == nil {
		return nil
	}
	var out []string
	for _, area := range KeyRiskAreas(res.RiskFactors, 0) {
		if area.Mitigation != "" {
			out = append(out, area.Mitigation)
		}
	}
	return out
}
