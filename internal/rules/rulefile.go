package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/covenant/internal/domain"
)

// RuleFile is a YAML rule pack layered over the builtin table.
//
//	rules:
//	  - name: exclusivity
//	    keywords: [exclusive supplier, sole supplier]
//	    baseScore: 14
//	    description: Exclusive dealing obligation
//	    mitigation: Limit exclusivity to named products
//	profiles:
//	  - contractType: vendor_contract
//	    weights: {exclusivity: 1.5}
type RuleFile struct {
	Rules    []domain.RiskRule        `yaml:"rules"`
	Profiles []domain.ContractProfile `yaml:"profiles"`
}

// LoadRuleFile reads a rule pack from disk.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRuleFile(data)
}

// ParseRuleFile decodes a YAML rule pack. Rules from a pack are never
// builtin.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	for i := range rf.Rules {
		rf.Rules[i].Builtin = false
	}
	return &rf, nil
}

// Build composes the builtin table, an optional rule pack and stored
// custom rules into a rule set. Later layers override earlier ones by name.
func Build(file *RuleFile, stored []domain.RiskRule, storedProfiles []domain.ContractProfile) (*RuleSet, error) {
	ruleLayers := [][]domain.RiskRule{DefaultRules()}
	profileLayers := [][]domain.ContractProfile{DefaultProfiles()}
	if file != nil {
		ruleLayers = append(ruleLayers, file.Rules)
		profileLayers = append(profileLayers, file.Profiles)
	}
	ruleLayers = append(ruleLayers, stored)
	profileLayers = append(profileLayers, storedProfiles)

	return NewRuleSet(Merge(ruleLayers...), MergeProfiles(profileLayers...))
}

// FromRepository builds the active rule set from the builtin table, an
// optional rule pack and the custom rules and profiles stored globally.
func FromRepository(ctx context.Context, repo domain.Repository, file *RuleFile) (*RuleSet, error) {
	if repo == nil {
		return Build(file, nil, nil)
	}

	stored, err := repo.ListRiskRules(ctx, domain.GlobalTenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored risk rules: %w", err)
	}
	storedProfiles, err := repo.ListContractProfiles(ctx, domain.GlobalTenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored contract profiles: %w", err)
	}

	rules := make([]domain.RiskRule, 0, len(stored))
	for _, r := range stored {
		rules = append(rules, *r)
	}
	profiles := make([]domain.ContractProfile, 0, len(storedProfiles))
	for _, p := range storedProfiles {
		profiles = append(profiles, *p)
	}

	return Build(file, rules, profiles)
}
