// Package entity pulls parties, dates, rupee amounts, jurisdictions and
// provision sentences out of contract text with fixed patterns.
package entity

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/covenant/internal/domain"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	partyPattern      = regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+?)\s*(?:,|\bhereinafter\b)`)
	companyPattern    = regexp.MustCompile(`(?i)\b(?:pvt|private limited|ltd|limited|llp|inc|corp|corporation)\b`)
	governmentPattern = regexp.MustCompile(`(?i)\b(?:government|ministry|authority)\b`)

	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})\b`)
	longDatePattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(january|february|march|april|may|june|july|august|september|october|november|december),?\s+(\d{4})\b`)

	amountPattern = regexp.MustCompile(`(?:₹|\bRs\.?|\bINR)\s*(\d[\d,]*(?:\.\d+)?)`)

	jurisdictionPattern = regexp.MustCompile(`(?i:\b(?:jurisdiction\s+of\s+(?:the\s+)?)?courts?\s+(?:at|in)|\bjurisdiction\s+of)\s+([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)`)
)

// ProvisionRule selects sentences of one provision kind.
type ProvisionRule struct {
	Kind    domain.ProvisionKind
	Pattern *regexp.Regexp
}

// ProvisionTable is matched against every lowercased sentence. A sentence
// may land in several kinds; "shall not" is both an obligation and a
// prohibition.
var ProvisionTable = []ProvisionRule{
	{domain.ProvisionObligation, regexp.MustCompile(`\b(?:shall|must)\b`)},
	{domain.ProvisionRight, regexp.MustCompile(`\b(?:may|entitled)\b`)},
	{domain.ProvisionProhibition, regexp.MustCompile(`\b(?:shall not|must not|prohibited)\b`)},
	{domain.ProvisionTermination, regexp.MustCompile(`\bterminat(?:e|es|ed|ing|ion)\b`)},
	{domain.ProvisionLiability, regexp.MustCompile(`\bliabilit(?:y|ies)\b`)},
	{domain.ProvisionIndemnity, regexp.MustCompile(`\bindemni(?:fy|fies|fied|fication|ty)\b`)},
	{domain.ProvisionPenalty, regexp.MustCompile(`\b(?:penalty|penalties|liquidated damages)\b`)},
	{domain.ProvisionConfidentiality, regexp.MustCompile(`\bconfidential(?:ity)?\b`)},
	{domain.ProvisionIntellectualProperty, regexp.MustCompile(`\b(?:intellectual property|ip)\b`)},
	{domain.ProvisionDisputeResolution, regexp.MustCompile(`\b(?:arbitration|arbitrator|disputes?)\b`)},
	{domain.ProvisionGoverningLaw, regexp.MustCompile(`\b(?:governing law|governed by)\b`)},
}

// abbreviations end with a period that does not close a sentence.
var abbreviations = map[string]bool{
	"rs": true, "no": true, "pvt": true, "mr": true, "mrs": true, "ms": true,
	"dr": true, "st": true, "vs": true, "viz": true, "cl": true, "sec": true, "art": true,
}

// Extract finds entities in text. Text without matches yields empty lists,
// never nil ones.
func Extract(text string) *domain.Entities {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	return &domain.Entities{
		Parties:       Parties(text),
		Dates:         Dates(text),
		Amounts:       Amounts(text),
		Jurisdictions: Jurisdictions(text),
		Provisions:    Provisions(text),
	}
}

// Parties returns the parties of every "between X and Y" recital, first
// mention wins.
func Parties(text string) []domain.Party {
	parties := []domain.Party{}
	seen := make(map[string]bool)

	for _, m := range partyPattern.FindAllStringSubmatch(text, -1) {
		for _, name := range m[1:] {
			name = strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `"'(`))
			key := strings.ToLower(name)
			if len(name) <= 3 || seen[key] {
				continue
			}
			seen[key] = true
			parties = append(parties, domain.Party{Name: name, Kind: ClassifyParty(name)})
		}
	}
	return parties
}

// ClassifyParty guesses the kind of party from its name.
func ClassifyParty(name string) domain.PartyKind {
	switch {
	case companyPattern.MatchString(name):
		return domain.PartyCompany
	case governmentPattern.MatchString(name):
		return domain.PartyGovernment
	default:
		return domain.PartyIndividual
	}
}

// Dates returns valid calendar dates in text order. Numeric dates are read
// day first; two-digit years fall in 2000-2099.
func Dates(text string) []domain.DateMention {
	type found struct {
		offset int
		date   domain.DateMention
	}
	var all []found

	for _, idx := range numericDatePattern.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[idx[2]:idx[3]])
		month, _ := strconv.Atoi(text[idx[4]:idx[5]])
		year, _ := strconv.Atoi(text[idx[6]:idx[7]])
		if idx[7]-idx[6] == 2 {
			year += 2000
		}
		if iso, ok := isoDate(year, time.Month(month), day); ok {
			all = append(all, found{idx[0], domain.DateMention{Date: iso, Raw: text[idx[0]:idx[1]]}})
		}
	}

	for _, idx := range longDatePattern.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[idx[2]:idx[3]])
		month := monthByName(text[idx[4]:idx[5]])
		year, _ := strconv.Atoi(text[idx[6]:idx[7]])
		if iso, ok := isoDate(year, month, day); ok {
			all = append(all, found{idx[0], domain.DateMention{Date: iso, Raw: text[idx[0]:idx[1]]}})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].offset < all[j].offset })

	dates := make([]domain.DateMention, 0, len(all))
	for _, f := range all {
		dates = append(dates, f.date)
	}
	return dates
}

func isoDate(year int, month time.Month, day int) (string, bool) {
	if month < time.January || month > time.December || day < 1 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31 February into March.
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day), true
}

func monthByName(name string) time.Month {
	name = strings.ToLower(name)
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()) == name {
			return m
		}
	}
	return 0
}

// Amounts returns every rupee amount in text order.
func Amounts(text string) []domain.Amount {
	amounts := []domain.Amount{}
	for _, idx := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		number := strings.TrimRight(text[idx[2]:idx[3]], ",")
		value, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
		if err != nil {
			continue
		}
		raw := text[idx[0]:idx[2]] + number
		amounts = append(amounts, domain.Amount{Raw: raw, Value: value, Currency: "INR"})
	}
	return amounts
}

// Jurisdictions returns the capitalized place names that follow "courts
// at", "courts in" or "jurisdiction of", first mention wins.
func Jurisdictions(text string) []domain.Jurisdiction {
	out := []domain.Jurisdiction{}
	seen := make(map[string]bool)
	for _, m := range jurisdictionPattern.FindAllStringSubmatch(text, -1) {
		location := strings.TrimSpace(m[1])
		key := strings.ToLower(location)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Jurisdiction{Location: location})
	}
	return out
}

// Provisions buckets sentences by ProvisionTable. Every kind is present in
// the result.
func Provisions(text string) map[domain.ProvisionKind][]string {
	out := make(map[domain.ProvisionKind][]string, len(ProvisionTable))
	for _, rule := range ProvisionTable {
		out[rule.Kind] = []string{}
	}

	for _, sentence := range Sentences(text) {
		lower := strings.ToLower(sentence)
		for _, rule := range ProvisionTable {
			if rule.Pattern.MatchString(lower) {
				out[rule.Kind] = append(out[rule.Kind], sentence)
			}
		}
	}
	return out
}

// Sentences splits whitespace-normalized text after '.', '!', '?' or ';'
// followed by a space. Clause numbers and common abbreviations do not end
// a sentence.
func Sentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' && c != ';' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' {
			continue
		}
		if c == '.' && !endsSentence(text[start:i]) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// endsSentence reports whether a period after the last word of s closes a
// sentence.
func endsSentence(s string) bool {
	word := s
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		word = s[i+1:]
	}
	if word == "" {
		return true
	}
	if abbreviations[strings.ToLower(word)] {
		return false
	}
	// Clause numbers such as "1" or "3.2".
	if strings.Trim(word, "0123456789.") == "" {
		return false
	}
	return true
}
