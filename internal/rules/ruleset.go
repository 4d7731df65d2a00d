// Package rules holds the risk rule set and the clause risk evaluator.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

// RuleSet is an immutable snapshot of risk rules and the contract-type
// weight matrix. It is safe for concurrent read-only use.
type RuleSet struct {
	rules    []compiledRule
	weights  map[domain.ContractType]map[string]float64
	profiles []domain.ContractProfile
	digest   string
}

type compiledRule struct {
	rule      domain.RiskRule
	condition *condition
}

// NewRuleSet validates and compiles rules and profiles into a snapshot.
// Rules keep their order; keywords are lowercased since matching is
// case-insensitive.
func NewRuleSet(rules []domain.RiskRule, profiles []domain.ContractProfile) (*RuleSet, error) {
	env, err := conditionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	set := &RuleSet{
		rules:   make([]compiledRule, 0, len(rules)),
		weights: make(map[domain.ContractType]map[string]float64),
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		r, err := normalizeRule(r)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate risk rule %q", r.Name)
		}
		seen[r.Name] = true

		compiled := compiledRule{rule: r}
		if r.Condition != "" {
			compiled.condition, err = compileCondition(env, r.Name, r.Condition)
			if err != nil {
				return nil, err
			}
		}
		set.rules = append(set.rules, compiled)
	}

	for _, p := range MergeProfiles(profiles) {
		if p.ContractType == "" {
			return nil, fmt.Errorf("contract profile requires a contract type")
		}
		weights := make(map[string]float64, len(p.Weights))
		for name, w := range p.Weights {
			if !seen[name] {
				return nil, fmt.Errorf("profile %s: unknown risk factor %q", p.ContractType, name)
			}
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("profile %s: invalid weight %v for %s", p.ContractType, w, name)
			}
			weights[name] = w
		}
		set.weights[p.ContractType] = weights
		set.profiles = append(set.profiles, domain.ContractProfile{ContractType: p.ContractType, Weights: weights})
	}

	set.digest, err = computeDigest(set)
	if err != nil {
		return nil, err
	}

	return set, nil
}

// Default returns the builtin rule set.
func Default() *RuleSet {
	set, err := NewRuleSet(DefaultRules(), DefaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("builtin rule set is invalid: %v", err))
	}
	return set
}

func normalizeRule(r domain.RiskRule) (domain.RiskRule, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, fmt.Errorf("risk rule name is required")
	}
	if r.BaseScore < 0 || math.IsNaN(r.BaseScore) || math.IsInf(r.BaseScore, 0) {
		return r, fmt.Errorf("risk rule %s: invalid base score %v", r.Name, r.BaseScore)
	}

	keywords := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return r, fmt.Errorf("risk rule %s: at least one keyword is required", r.Name)
	}
	r.Keywords = keywords
	r.Condition = strings.TrimSpace(r.Condition)

	return r, nil
}

// Weight returns the multiplier for a factor under a contract type.
// Unknown contract types and unlisted factors weigh 1.0.
func (s *RuleSet) Weight(contractType domain.ContractType, factor string) float64 {
	if w, ok := s.weights[contractType][factor]; ok {
		return w
	}
	return 1.0
}

// Rules returns a copy of the rules in evaluation order.
func (s *RuleSet) Rules() []domain.RiskRule {
	out := make([]domain.RiskRule, len(s.rules))
	for i, c := range s.rules {
		out[i] = c.rule
		out[i].Keywords = append([]string(nil), c.rule.Keywords...)
	}
	return out
}

// Rule returns the named rule.
func (s *RuleSet) Rule(name string) (domain.RiskRule, bool) {
	for _, c := range s.rules {
		if c.rule.Name == name {
			return c.rule, true
		}
	}
	return domain.RiskRule{}, false
}

// Profiles returns the weight matrix, one profile per contract type.
func (s *RuleSet) Profiles() []domain.ContractProfile {
	out := make([]domain.ContractProfile, len(s.profiles))
	for i, p := range s.profiles {
		weights := make(map[string]float64, len(p.Weights))
		for k, v := range p.Weights {
			weights[k] = v
		}
		out[i] = domain.ContractProfile{ContractType: p.ContractType, Weights: weights}
	}
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Digest identifies the rule set content. Two sets with the same digest
// score every clause identically.
func (s *RuleSet) Digest() string {
	return s.digest
}

func computeDigest(s *RuleSet) (string, error) {
	// json.Marshal sorts map keys, so the encoding is canonical.
	payload, err := json.Marshal(struct {
		Rules    []domain.RiskRule
		Profiles []domain.ContractProfile
	}{s.Rules(), s.profiles})
	if err != nil {
		return "", fmt.Errorf("failed to encode rule set: %w", err)
	}
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])[:16], nil
}

// Merge layers rule lists. A later rule replaces an earlier one with the
// same name in place; new names are appended.
func Merge(layers ...[]domain.RiskRule) []domain.RiskRule {
	var out []domain.RiskRule
	index := make(map[string]int)
	for _, layer := range layers {
		for _, r := range layer {
			if i, ok := index[r.Name]; ok {
				out[i] = r
				continue
			}
			index[r.Name] = len(out)
			out = append(out, r)
		}
	}
	return out
}

// MergeProfiles layers profiles per contract type. Later entries override
// individual factor weights. Known contract types come first in canonical
// order, others follow sorted by name.
func MergeProfiles(layers ...[]domain.ContractProfile) []domain.ContractProfile {
	merged := make(map[domain.ContractType]map[string]float64)
	for _, layer := range layers {
		for _, p := range layer {
			weights, ok := merged[p.ContractType]
			if !ok {
				weights = make(map[string]float64)
				merged[p.ContractType] = weights
			}
			for k, v := range p.Weights {
				weights[k] = v
			}
		}
	}

	var order []domain.ContractType
	for _, ct := range domain.ContractTypes() {
		if _, ok := merged[ct]; ok {
			order = append(order, ct)
		}
	}
	var extra []domain.ContractType
	for ct := range merged {
		if !ct.Known() {
			extra = append(extra, ct)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	out := make([]domain.ContractProfile, 0, len(order))
	for _, ct := range order {
		out = append(out, domain.ContractProfile{ContractType: ct, Weights: merged[ct]})
	}
	return out
}
