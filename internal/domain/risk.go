package domain

// ContractType is the document category used to weight risk factors.
// It is supplied by an external classifier.
type ContractType string

const (
	ContractEmployment  ContractType = "employment_agreement"
	ContractVendor      ContractType = "vendor_contract"
	ContractLease       ContractType = "lease_agreement"
	ContractPartnership ContractType = "partnership_deed"
	ContractService     ContractType = "service_contract"
)

// ContractTypes returns the supported contract types in their canonical order.
func ContractTypes() []ContractType {
	return []ContractType{
		ContractEmployment,
		ContractVendor,
		ContractLease,
		ContractPartnership,
		ContractService,
	}
}

// Known reports whether t is one of the supported contract types.
// Unknown types are still accepted by the engine and weighted at 1.0.
func (t ContractType) Known() bool {
	for _, ct := range ContractTypes() {
		if ct == t {
			return true
		}
	}
	return false
}

// Severity is a three-level risk label.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// RiskRule is a named keyword pattern with a base severity and advice.
type RiskRule struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	BaseScore   float64  `json:"baseScore" yaml:"baseScore"`
	Description string   `json:"description" yaml:"description"`
	Mitigation  string   `json:"mitigation" yaml:"mitigation"`

	// Condition is an optional CEL guard. When set, the rule only triggers
	// if a keyword matches and the expression evaluates to true.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Builtin marks rules from the static table; they cannot be deleted.
	Builtin bool `json:"builtin" yaml:"-"`
}

// ContractProfile holds the risk-factor multipliers for one contract type.
// Factors missing from Weights default to 1.0.
type ContractProfile struct {
	ContractType ContractType       `json:"contractType" yaml:"contractType"`
	Weights      map[string]float64 `json:"weights" yaml:"weights"`
}

// TriggeredFactor is a risk factor that matched a clause.
type TriggeredFactor struct {
	Risk         string  `json:"risk"`
	Description  string  `json:"description"`
	Mitigation   string  `json:"mitigation"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // base score * weight
}

// ClauseRiskResult is the score for a single clause.
type ClauseRiskResult struct {
	ClauseID    string            `json:"clauseId"`
	ClauseType  ClauseType        `json:"clauseType"`
	Score       float64           `json:"score"`
	Level       Severity          `json:"level"`
	RiskFactors []TriggeredFactor `json:"riskFactors"`
}

// FactorFrequency counts how often a factor fired across a document.
type FactorFrequency struct {
	Count       int    `json:"count"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// ContractRiskResult aggregates every clause result of one document.
type ContractRiskResult struct {
	ContractType ContractType `json:"contractType"`
	Score        float64      `json:"score"`
	Level        Severity     `json:"level"`
	Escalated    bool         `json:"escalated"`

	// Top clauses in document order.
	HighRiskClauses   []ClauseRiskResult `json:"highRiskClauses"`
	MediumRiskClauses []ClauseRiskResult `json:"mediumRiskClauses"`

	HighCount   int `json:"highCount"`
	MediumCount int `json:"mediumCount"`
	LowCount    int `json:"lowCount"`

	RiskFactors   map[string]FactorFrequency `json:"riskFactors"`
	ClauseResults []ClauseRiskResult         `json:"clauseResults"`
}

// RiskReport is the view consumed by report generation and audit logging.
type RiskReport struct {
	ContractType      ContractType       `json:"contractType"`
	OverallRisk       OverallRisk        `json:"overallRisk"`
	RiskDistribution  RiskDistribution   `json:"riskDistribution"`
	KeyRiskAreas      []KeyRiskArea      `json:"keyRiskAreas"`
	HighRiskClauses   []ClauseRiskResult `json:"highRiskClauses"`
	MediumRiskClauses []ClauseRiskResult `json:"mediumRiskClauses"`
}

// OverallRisk is the document-level verdict.
type OverallRisk struct {
	Level Severity `json:"level"`
	Score float64  `json:"score"`
}

// RiskDistribution counts clauses per severity level.
type RiskDistribution struct {
	HighRiskClauses   int `json:"highRiskClauses"`
	MediumRiskClauses int `json:"mediumRiskClauses"`
	LowRiskClauses    int `json:"lowRiskClauses"`
	TotalClauses      int `json:"totalClauses"`
}

// KeyRiskArea is one entry of the frequency-ranked factor list.
type KeyRiskArea struct {
	RiskArea    string `json:"riskArea"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
	Frequency   int    `json:"frequency"`
}
