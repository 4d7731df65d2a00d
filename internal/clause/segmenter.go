// Package clause splits contract text into clauses and assigns their type.
package clause

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/opensource-finance/covenant/internal/domain"
)

var (
	// markerPattern matches a clause heading line: an optional label word,
	// a dotted number and an optional short title.
	markerPattern = regexp.MustCompile(`(?im)^[ \t]*((?:(?:clause|section)[ \t]*)?\d+(?:\.\d+)*\.?)[ \t]*(\p{L}[^\n]{0,80}?)?[ \t]*$`)

	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	horizontalRun  = regexp.MustCompile(`[ \t]+`)
)

// Segmenter turns normalized contract text into an ordered clause list.
// It holds no mutable state and is safe for concurrent use.
type Segmenter struct {
	minClauses      int
	minParagraphLen int
}

// NewSegmenter creates a segmenter from the engine configuration.
func NewSegmenter(cfg domain.EngineConfig) *Segmenter {
	s := &Segmenter{
		minClauses:      cfg.FallbackMinClauses,
		minParagraphLen: cfg.ParagraphMinLength,
	}
	def := domain.DefaultEngineConfig()
	if s.minClauses <= 0 {
		s.minClauses = def.FallbackMinClauses
	}
	if s.minParagraphLen < 0 {
		s.minParagraphLen = def.ParagraphMinLength
	}
	return s
}

// Segment splits text using the default engine configuration.
func Segment(text string) []domain.Clause {
	clauses, _ := NewSegmenter(domain.DefaultEngineConfig()).Split(text)
	return clauses
}

// Segment splits text into clauses in document order.
func (s *Segmenter) Segment(text string) []domain.Clause {
	clauses, _ := s.Split(text)
	return clauses
}

// Split splits text into clauses and reports which strategy produced them.
// Empty input yields no clauses.
func (s *Segmenter) Split(text string) ([]domain.Clause, domain.SegmentStrategy) {
	cleaned := Normalize(text)
	if cleaned == "" {
		return []domain.Clause{}, domain.StrategyNumbered
	}

	numbered := s.numbered(cleaned)
	if len(numbered) >= s.minClauses {
		return numbered, domain.StrategyNumbered
	}
	return s.paragraphs(cleaned), domain.StrategyParagraph
}

// Normalize drops carriage returns, collapses runs of spaces and tabs and
// trims the result. Line breaks are kept since they carry structure.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = horizontalRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// numbered emits one clause per heading line. A body runs from the end of
// its heading to the start of the next heading, or to the end of text.
func (s *Segmenter) numbered(text string) []domain.Clause {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	clauses := make([]domain.Clause, 0, len(matches))

	for i, m := range matches {
		number := strings.TrimSpace(text[m[2]:m[3]])
		title := ""
		if m[4] >= 0 {
			title = strings.TrimSpace(text[m[4]:m[5]])
		}

		bodyEnd := len(text)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:bodyEnd])

		head := number
		if title != "" {
			head += " " + title
		}
		full := strings.TrimSpace(head + "\n" + body)

		clauses = append(clauses, newClause(number, title, full))
	}
	return clauses
}

// paragraphs keeps blank-line delimited paragraphs longer than the minimum
// length, labelled P1, P2, ... in order of appearance.
func (s *Segmenter) paragraphs(text string) []domain.Clause {
	clauses := []domain.Clause{}
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) <= s.minParagraphLen {
			continue
		}
		clauses = append(clauses, newClause(fmt.Sprintf("P%d", len(clauses)+1), "", p))
	}
	return clauses
}

func newClause(number, title, full string) domain.Clause {
	return domain.Clause{
		ID:       ID(full),
		Number:   number,
		Title:    title,
		Type:     InferType(full),
		FullText: full,
	}
}
