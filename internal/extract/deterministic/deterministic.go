// Package deterministic implements the Deterministic Extractor (C6): an
// ordered set of regex rules, keyed by document type, each scoped by a
// proximity window around a label (spec.md §4.2). Confidence is always 1.0
// — these hits are auditable and independently verifiable.
//
// Grounded on internal/threat's keyword/pattern rule functions (regexp
// matched against free text, accumulated into findings), generalized from
// "detect a suspicious phrase" to "extract and normalize a labeled value".
package deterministic

import (
	"regexp"
	"strings"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
)

// Kind selects the normalization applied to a rule's raw match.
type Kind string

const (
	KindMoney   Kind = "money"
	KindPercent Kind = "percent"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindDate    Kind = "date"
	KindString  Kind = "string"
)

// Rule is one labeled-value extraction rule. Label and Value are kept as
// separate regex fragments per §4.2 ("keep windows and value patterns as
// separate fragments and compose them") so the same value pattern (e.g. a
// money amount) can be reused across many different labels.
type Rule struct {
	Key         string
	Label       *regexp.Regexp
	Value       *regexp.Regexp
	WindowChars int
	Kind        Kind
}

// Hit is one successful extraction.
type Hit struct {
	Key          string
	Value        string
	EvidenceText string
}

// Engine runs an ordered rule set against reflowed OCR/parsed text for one
// document type.
type Engine struct {
	rulesByDocType map[domain.DocType][]Rule
}

// NewEngine builds an Engine from the default rule set (DefaultRules).
func NewEngine() *Engine {
	return &Engine{rulesByDocType: DefaultRules()}
}

// NewEngineWithRules builds an Engine from a caller-supplied rule set, used
// in tests to exercise a narrow slice of rules deterministically.
func NewEngineWithRules(rules map[domain.DocType][]Rule) *Engine {
	return &Engine{rulesByDocType: rules}
}

// Extract applies every rule for docType against text, returning the first
// hit per key (§4.2 "first-wins per key"). text may be empty (the §4.2
// fail-safe for an OCR load failure); Extract then simply returns no hits.
func (e *Engine) Extract(docType domain.DocType, text string) []Hit {
	rules := e.rulesByDocType[docType]
	seen := make(map[string]bool, len(rules))
	hits := make([]Hit, 0, len(rules))

	for _, rule := range rules {
		if seen[rule.Key] {
			continue
		}
		hit, ok := applyRule(rule, text)
		if !ok {
			continue
		}
		seen[rule.Key] = true
		hits = append(hits, hit)
		metrics.RecordExtractionConfidence("deterministic", 1.0)
	}
	return hits
}

func applyRule(rule Rule, text string) (Hit, bool) {
	labelLoc := rule.Label.FindStringIndex(text)
	if labelLoc == nil {
		return Hit{}, false
	}

	windowStart := labelLoc[1]
	windowEnd := windowStart + rule.WindowChars
	if rule.WindowChars <= 0 || windowEnd > len(text) {
		windowEnd = len(text)
	}
	window := text[windowStart:windowEnd]

	valueLoc := rule.Value.FindStringSubmatchIndex(window)
	if valueLoc == nil {
		return Hit{}, false
	}
	raw := rule.Value.FindStringSubmatch(window)[0]
	if len(rule.Value.SubexpNames()) > 1 {
		if m := rule.Value.FindStringSubmatch(window); len(m) > 1 && m[1] != "" {
			raw = m[1]
		}
	}

	normalized, ok := normalize(rule.Kind, raw)
	if !ok {
		return Hit{}, false
	}

	evidenceEnd := windowStart + valueLoc[1]
	evidence := strings.TrimSpace(text[max(labelLoc[0]-20, 0):min(evidenceEnd+20, len(text))])

	return Hit{Key: rule.Key, Value: normalized, EvidenceText: evidence}, true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
