package rules

import "github.com/opensource-finance/covenant/internal/domain"

// DefaultRules returns the builtin risk factor table in evaluation order.
func DefaultRules() []domain.RiskRule {
	return []domain.RiskRule{
		{
			Name:        "penalty",
			Keywords:    []string{"penalty", "liquidated damages", "fine", "forfeit"},
			BaseScore:   18,
			Description: "Financial penalties imposed on breach",
			Mitigation:  "Cap penalties to actual damages",
			Builtin:     true,
		},
		{
			Name:        "indemnity",
			Keywords:    []string{"indemnify", "hold harmless"},
			BaseScore:   20,
			Description: "Indemnity obligation for losses",
			Mitigation:  "Limit indemnity to direct damages only",
			Builtin:     true,
		},
		{
			Name:        "unilateral_termination",
			Keywords:    []string{"terminate without cause", "sole discretion"},
			BaseScore:   22,
			Description: "One-sided termination rights",
			Mitigation:  "Seek mutual termination rights",
			Builtin:     true,
		},
		{
			Name:        "jurisdiction",
			Keywords:    []string{"foreign jurisdiction", "outside india"},
			BaseScore:   15,
			Description: "Non-Indian jurisdiction",
			Mitigation:  "Insist on Indian courts / arbitration",
			Builtin:     true,
		},
		{
			Name:        "auto_renewal",
			Keywords:    []string{"auto renew", "deemed renewed", "lock-in"},
			BaseScore:   12,
			Description: "Automatic renewal or lock-in",
			Mitigation:  "Add explicit renewal consent",
			Builtin:     true,
		},
		{
			Name:        "non_compete_ip",
			Keywords:    []string{"non compete", "ip assignment", "restraint of trade"},
			BaseScore:   25,
			Description: "Restrictive non-compete or IP transfer",
			Mitigation:  "Limit duration and preserve background IP",
			Builtin:     true,
		},
		{
			Name:        "unlimited_liability",
			Keywords:    []string{"unlimited liability", "all damages"},
			BaseScore:   30,
			Description: "Unlimited financial exposure",
			Mitigation:  "Add liability cap",
			Builtin:     true,
		},
	}
}

// DefaultProfiles returns the builtin contract-type weight matrix.
func DefaultProfiles() []domain.ContractProfile {
	return []domain.ContractProfile{
		{
			ContractType: domain.ContractEmployment,
			Weights:      map[string]float64{"non_compete_ip": 2.0, "unilateral_termination": 1.8},
		},
		{
			ContractType: domain.ContractVendor,
			Weights:      map[string]float64{"unlimited_liability": 2.2, "penalty": 1.8, "indemnity": 2.0},
		},
		{
			ContractType: domain.ContractLease,
			Weights:      map[string]float64{"auto_renewal": 1.7},
		},
		{
			ContractType: domain.ContractPartnership,
			Weights:      map[string]float64{"jurisdiction": 1.5},
		},
		{
			ContractType: domain.ContractService,
			Weights:      map[string]float64{"unlimited_liability": 2.0, "indemnity": 1.9},
		},
	}
}

// IsBuiltin reports whether name belongs to the builtin table.
func IsBuiltin(name string) bool {
	for _, r := range DefaultRules() {
		if r.Name == name {
			return true
		}
	}
	return false
}
