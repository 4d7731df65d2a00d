package clause

import (
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

// TypeRule pairs a clause category with the substrings that select it.
type TypeRule struct {
	Type     domain.ClauseType
	Keywords []string
}

// TypeTable is the ordered category table. The first rule with any
// keyword present in the lowercased text wins, so order is part of the
// contract and must not be changed casually.
var TypeTable = []TypeRule{
	{domain.ClauseTermination, []string{"terminate", "termination", "notice period"}},
	{domain.ClausePayment, []string{"payment", "fees", "salary", "consideration", "invoice"}},
	{domain.ClauseConfidentiality, []string{"confidential", "non-disclosure", "nda"}},
	{domain.ClauseIndemnification, []string{"indemnify", "hold harmless"}},
	{domain.ClauseLimitationOfLiability, []string{"liability", "damages", "cap on liability"}},
	{domain.ClauseGoverningLaw, []string{"governing law", "jurisdiction", "courts"}},
	{domain.ClauseIntellectualProperty, []string{"intellectual property", "ip rights", "ownership"}},
	{domain.ClauseNonCompete, []string{"non-compete", "restraint of trade"}},
	{domain.ClauseArbitration, []string{"arbitration", "arbitral tribunal"}},
}

// InferType returns the category of text, or general when nothing matches.
func InferType(text string) domain.ClauseType {
	lower := strings.ToLower(text)
	for _, rule := range TypeTable {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Type
			}
		}
	}
	return domain.ClauseGeneral
}
