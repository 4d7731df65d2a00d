package domain

// ClauseType is the semantic category inferred for a clause.
type ClauseType string

// Clause categories. The order used for inference lives in clause.TypeTable.
const (
	ClauseTermination           ClauseType = "termination"
	ClausePayment               ClauseType = "payment"
	ClauseConfidentiality       ClauseType = "confidentiality"
	ClauseIndemnification       ClauseType = "indemnification"
	ClauseLimitationOfLiability ClauseType = "limitation_of_liability"
	ClauseGoverningLaw          ClauseType = "governing_law"
	ClauseIntellectualProperty  ClauseType = "intellectual_property"
	ClauseNonCompete            ClauseType = "non_compete"
	ClauseArbitration           ClauseType = "arbitration"
	ClauseGeneral               ClauseType = "general"
)

// Clause is one contiguous unit of contract text produced by segmentation.
// Clauses are immutable once created; downstream stages attach derived
// results keyed by ID instead of mutating the clause.
type Clause struct {
	// ID is a content fingerprint of FullText.
	ID string `json:"id"`

	// Number is the structural label ("3.2", "Clause 4") or a synthetic
	// paragraph ordinal ("P1").
	Number string `json:"number"`

	Title    string     `json:"title,omitempty"`
	Type     ClauseType `json:"type"`
	FullText string     `json:"fullText"`
}

// SegmentStrategy records which segmentation pass produced the clauses.
type SegmentStrategy string

const (
	// StrategyNumbered means structural markers were found.
	StrategyNumbered SegmentStrategy = "numbered"

	// StrategyParagraph means the blank-line paragraph fallback was used.
	StrategyParagraph SegmentStrategy = "paragraph"
)
