package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/covenant/internal/domain"
)

func TestParties(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.Party
	}{
		{
			"company and individual",
			"This Agreement is made between Acme Pvt Ltd and Ravi Kumar, hereinafter the Parties.",
			[]domain.Party{{Name: "Acme Pvt Ltd", Kind: domain.PartyCompany}, {Name: "Ravi Kumar", Kind: domain.PartyIndividual}},
		},
		{
			"hereinafter terminates the second party",
			"entered into between the Ministry of Railways and Bharat Steel Limited hereinafter called the Contractor",
			[]domain.Party{{Name: "the Ministry of Railways", Kind: domain.PartyGovernment}, {Name: "Bharat Steel Limited", Kind: domain.PartyCompany}},
		},
		{
			"parenthesised hereinafter",
			"made between Zenith LLP and Meera Shah (hereinafter the Consultant)",
			[]domain.Party{{Name: "Zenith LLP", Kind: domain.PartyCompany}, {Name: "Meera Shah", Kind: domain.PartyIndividual}},
		},
		{
			"repeated recital",
			"between Acme Ltd and Ravi Kumar, as agreed between Acme Ltd and Ravi Kumar, again",
			[]domain.Party{{Name: "Acme Ltd", Kind: domain.PartyCompany}, {Name: "Ravi Kumar", Kind: domain.PartyIndividual}},
		},
		{"short names dropped", "between A and B, nothing else", []domain.Party{}},
		{"no terminator", "This is between Acme Ltd and Beta Ltd.", []domain.Party{}},
		{"no recital", "The Vendor supplies hardware.", []domain.Party{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parties(tt.text))
		})
	}
}

func TestClassifyParty(t *testing.T) {
	tests := []struct {
		name string
		want domain.PartyKind
	}{
		{"Acme Pvt Ltd", domain.PartyCompany},
		{"Zenith LLP", domain.PartyCompany},
		{"Globex Inc", domain.PartyCompany},
		{"Government of Kerala", domain.PartyGovernment},
		{"Municipal Authority", domain.PartyGovernment},
		{"Ravi Kumar", domain.PartyIndividual},
		{"Principal Investor", domain.PartyIndividual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyParty(tt.name))
		})
	}
}

func TestDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.DateMention
	}{
		{
			"numeric day first",
			"Signed on 15/08/2023 and renewed on 01-04-24.",
			[]domain.DateMention{{Date: "2023-08-15", Raw: "15/08/2023"}, {Date: "2024-04-01", Raw: "01-04-24"}},
		},
		{
			"long form with ordinal",
			"effective from 1st January 2024 onwards",
			[]domain.DateMention{{Date: "2024-01-01", Raw: "1st January 2024"}},
		},
		{
			"long form with comma",
			"due on 5 march, 2025",
			[]domain.DateMention{{Date: "2025-03-05", Raw: "5 march, 2025"}},
		},
		{
			"text order across forms",
			"from 2 June 2024 until 30/06/2025",
			[]domain.DateMention{{Date: "2024-06-02", Raw: "2 June 2024"}, {Date: "2025-06-30", Raw: "30/06/2025"}},
		},
		{"impossible day", "on 31/02/2024", []domain.DateMention{}},
		{"impossible month", "on 13/13/2024", []domain.DateMention{}},
		{"clause numbers", "Clause 3.2 applies to Section 4.1.", []domain.DateMention{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dates(tt.text))
		})
	}
}

func TestAmounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.Amount
	}{
		{
			"indian grouping",
			"a fee of Rs. 5,00,000 payable monthly",
			[]domain.Amount{{Raw: "Rs. 5,00,000", Value: 500000, Currency: "INR"}},
		},
		{
			"rupee sign with paise",
			"a deposit of ₹1,250.50 only",
			[]domain.Amount{{Raw: "₹1,250.50", Value: 1250.5, Currency: "INR"}},
		},
		{
			"trailing punctuation",
			"Rs.750 and INR 1,000, plus taxes.",
			[]domain.Amount{
				{Raw: "Rs.750", Value: 750, Currency: "INR"},
				{Raw: "INR 1,000", Value: 1000, Currency: "INR"},
			},
		},
		{"other currency", "a fee of USD 500", []domain.Amount{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Amounts(tt.text))
		})
	}
}

func TestJurisdictions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"jurisdiction of the courts", "subject to the exclusive jurisdiction of the courts at Mumbai.", []string{"Mumbai"}},
		{"multi word place", "Courts in New Delhi shall have jurisdiction.", []string{"New Delhi"}},
		{"jurisdiction of", "submits to the jurisdiction of Singapore", []string{"Singapore"}},
		{"first mention wins", "courts at Mumbai; failing which courts in Mumbai", []string{"Mumbai"}},
		{"lowercase place ignored", "the courts at the relevant place", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, j := range Jurisdictions(tt.text) {
				got = append(got, j.Location)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvisions(t *testing.T) {
	tests := []struct {
		sentence string
		want     []domain.ProvisionKind
	}{
		{"The Vendor shall deliver the goods.", []domain.ProvisionKind{domain.ProvisionObligation}},
		{"The Buyer may inspect the goods.", []domain.ProvisionKind{domain.ProvisionRight}},
		{
			"The Employee shall not disclose confidential information.",
			[]domain.ProvisionKind{domain.ProvisionObligation, domain.ProvisionProhibition, domain.ProvisionConfidentiality},
		},
		{"Either party may terminate this agreement.", []domain.ProvisionKind{domain.ProvisionRight, domain.ProvisionTermination}},
		{
			"The Vendor shall indemnify the Buyer against any liability.",
			[]domain.ProvisionKind{domain.ProvisionObligation, domain.ProvisionLiability, domain.ProvisionIndemnity},
		},
		{"Delay attracts liquidated damages.", []domain.ProvisionKind{domain.ProvisionPenalty}},
		{"All IP created vests in the Company.", []domain.ProvisionKind{domain.ProvisionIntellectualProperty}},
		{"Any dispute goes to arbitration.", []domain.ProvisionKind{domain.ProvisionDisputeResolution}},
		{"The relationship is governed by Indian law.", []domain.ProvisionKind{domain.ProvisionGoverningLaw}},
		{"Shipping is free.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			got := Provisions(tt.sentence)
			require.Len(t, got, len(ProvisionTable))

			var kinds []domain.ProvisionKind
			for _, rule := range ProvisionTable {
				if len(got[rule.Kind]) > 0 {
					kinds = append(kinds, rule.Kind)
					assert.Equal(t, []string{tt.sentence}, got[rule.Kind])
				}
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"clause numbers do not split",
			"1. Scope The Vendor supplies goods. 2. Payment Fees are due in 30 days.",
			[]string{"1. Scope The Vendor supplies goods.", "2. Payment Fees are due in 30 days."},
		},
		{
			"abbreviations and other terminators",
			"Pay Rs. 500 now; the rest later! Done",
			[]string{"Pay Rs. 500 now;", "the rest later!", "Done"},
		},
		{"decimal clause reference", "Clause 3.2 survives.", []string{"Clause 3.2 survives."}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.text))
		})
	}
}

func TestExtract(t *testing.T) {
	text := `This Services Agreement is made on 1st April 2024 between Acme Pvt Ltd
and Ravi Kumar, hereinafter the Parties.

1. Fees
The Client shall pay Rs. 2,00,000 per quarter.

2. Law
This agreement is governed by Indian law and subject to the
jurisdiction of the courts at Bengaluru.`

	e := Extract(text)

	assert.Equal(t, []domain.Party{
		{Name: "Acme Pvt Ltd", Kind: domain.PartyCompany},
		{Name: "Ravi Kumar", Kind: domain.PartyIndividual},
	}, e.Parties)
	assert.Equal(t, []domain.DateMention{{Date: "2024-04-01", Raw: "1st April 2024"}}, e.Dates)
	assert.Equal(t, []domain.Amount{{Raw: "Rs. 2,00,000", Value: 200000, Currency: "INR"}}, e.Amounts)
	assert.Equal(t, []domain.Jurisdiction{{Location: "Bengaluru"}}, e.Jurisdictions)
	assert.Equal(t, []string{"1. Fees The Client shall pay Rs. 2,00,000 per quarter."}, e.Provisions[domain.ProvisionObligation])
	assert.Len(t, e.Provisions[domain.ProvisionGoverningLaw], 1)
}

func TestExtract_Empty(t *testing.T) {
	e := Extract("   \n\n ")

	assert.NotNil(t, e.Parties)
	assert.Empty(t, e.Parties)
	assert.NotNil(t, e.Dates)
	assert.NotNil(t, e.Amounts)
	assert.NotNil(t, e.Jurisdictions)
	require.Len(t, e.Provisions, len(ProvisionTable))
	for kind, sentences := range e.Provisions {
		assert.NotNil(t, sentences, kind)
		assert.Empty(t, sentences, kind)
	}
}
