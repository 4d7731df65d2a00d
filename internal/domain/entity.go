package domain

// PartyKind classifies a contracting party by its name.
type PartyKind string

const (
	PartyCompany    PartyKind = "company"
	PartyGovernment PartyKind = "government"
	PartyIndividual PartyKind = "individual"
)

// ProvisionKind labels sentences by the obligation or right they express.
type ProvisionKind string

const (
	ProvisionObligation           ProvisionKind = "obligation"
	ProvisionRight                ProvisionKind = "right"
	ProvisionProhibition          ProvisionKind = "prohibition"
	ProvisionTermination          ProvisionKind = "termination"
	ProvisionLiability            ProvisionKind = "liability"
	ProvisionIndemnity            ProvisionKind = "indemnity"
	ProvisionPenalty              ProvisionKind = "penalty"
	ProvisionConfidentiality      ProvisionKind = "confidentiality"
	ProvisionIntellectualProperty ProvisionKind = "intellectual_property"
	ProvisionDisputeResolution    ProvisionKind = "dispute_resolution"
	ProvisionGoverningLaw         ProvisionKind = "governing_law"
)

// Entities are the facts pattern-matched out of a contract.
type Entities struct {
	Parties       []Party                    `json:"parties"`
	Dates         []DateMention              `json:"dates"`
	Amounts       []Amount                   `json:"amounts"`
	Jurisdictions []Jurisdiction             `json:"jurisdictions"`
	Provisions    map[ProvisionKind][]string `json:"provisions"`
}

// Party is a contracting party named in a "between X and Y" recital.
type Party struct {
	Name string    `json:"name"`
	Kind PartyKind `json:"kind"`
}

// DateMention is a calendar date as written and in ISO form.
type DateMention struct {
	Date string `json:"date"` // YYYY-MM-DD
	Raw  string `json:"raw"`
}

// Amount is a rupee amount as written and its numeric value.
type Amount struct {
	Raw      string  `json:"raw"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Jurisdiction is a place named as a seat of courts or jurisdiction.
type Jurisdiction struct {
	Location string `json:"location"`
}
