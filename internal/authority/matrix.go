// Package authority implements the Authority Matrix (C4): deterministic,
// priority-based conflict resolution across candidate values proposed for
// the same field (spec.md §4.4).
//
// Grounded on internal/threat's RuleBasedScorer (a fixed ordered rule set
// accumulating findings into one Report), generalized from "accumulate a
// risk score" to "rank candidates and pick a deterministic winner".
package authority

import (
	"fmt"
	"sort"
	"time"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// basePriority is the §4.4 base priority table.
var basePriority = map[domain.CandidateSource]float64{
	domain.SourceInvestorDirective: 1000,
	domain.SourceEscrowInstruction: 900,
	domain.SourceManualEntry:       800,
	domain.SourceVendorAPI:         700,
	domain.SourceDocumentParse:     600,
	domain.SourceAIDoc:             500,
	domain.SourceOCR:               400,
}

// fieldOverrides holds the §4.4 field-specific priority overrides. An
// override replaces the base priority entirely for that (field, source)
// pair; it never merges with the base table.
var fieldOverrides = map[string]map[domain.CandidateSource]float64{
	"property_address": {domain.SourceVendorAPI: 1000},
	"borrower_name":     {domain.SourceManualEntry: 1000},
	"payment_date":      {domain.SourceEscrowInstruction: 1000},
}

// Matrix resolves a set of candidates for a field to a single Decision.
type Matrix struct {
	// Now supplies "current time" for age-day computation; defaults to
	// time.Now when nil (tests inject a fixed clock).
	Now func() int64 // unix seconds
}

// Decision is the §4.4 output shape.
type Decision struct {
	Winner             domain.Candidate
	WinnerValue        string
	Reason             string
	ConflictingSources []string
	AuthorityRule      string
	Confidence         float64
	EffectivePriority  float64
}

// conflictingSourceID identifies one losing candidate as "<source>_<ts>"
// (§4.4 S1: "conflictingSources = [document_parse_<ts>]") — qualified by
// timestamp since multiple losing candidates can share the same source.
func conflictingSourceID(c domain.Candidate) string {
	return fmt.Sprintf("%s_%d", c.Source, c.Timestamp.Unix())
}

func basePriorityFor(field string, source domain.CandidateSource) float64 {
	if overrides, ok := fieldOverrides[field]; ok {
		if p, ok := overrides[source]; ok {
			return p
		}
	}
	if p, ok := basePriority[source]; ok {
		return p
	}
	return 0
}

// effectivePriority computes p_eff = p_base + 0.1·p_base·confidence −
// min(ageDays/30, 1)·0.05·p_base (§4.4).
func effectivePriority(base, confidence float64, ageDays float64) float64 {
	ageFactor := ageDays / 30
	if ageFactor > 1 {
		ageFactor = 1
	}
	return base + 0.1*base*confidence - ageFactor*0.05*base
}

type scored struct {
	candidate  domain.Candidate
	effPrio    float64
	ageDays    float64
}

// Resolve implements the §4.4 ordering rules: highest p_eff wins; ties break
// on higher confidence, then newer timestamp, then lexicographically larger
// sourceKey (stable).
func (m *Matrix) Resolve(field string, candidates []domain.Candidate) Decision {
	if len(candidates) == 0 {
		return Decision{}
	}
	if len(candidates) == 1 {
		c := candidates[0]
		return Decision{
			Winner:            c,
			WinnerValue:       c.Value,
			Reason:            "single candidate, no conflict",
			AuthorityRule:     "no_conflict",
			Confidence:        c.Confidence,
			EffectivePriority: effectivePriority(basePriorityFor(field, c.Source), c.Confidence, 0),
		}
	}

	now := m.now()
	scoredCandidates := make([]scored, len(candidates))
	for i, c := range candidates {
		ageDays := float64(now-c.Timestamp.Unix()) / 86400
		if ageDays < 0 {
			ageDays = 0
		}
		base := basePriorityFor(field, c.Source)
		scoredCandidates[i] = scored{
			candidate: c,
			effPrio:   effectivePriority(base, c.Confidence, ageDays),
			ageDays:   ageDays,
		}
	}

	sort.SliceStable(scoredCandidates, func(i, j int) bool {
		a, b := scoredCandidates[i], scoredCandidates[j]
		if a.effPrio != b.effPrio {
			return a.effPrio > b.effPrio
		}
		if a.candidate.Confidence != b.candidate.Confidence {
			return a.candidate.Confidence > b.candidate.Confidence
		}
		if !a.candidate.Timestamp.Equal(b.candidate.Timestamp) {
			return a.candidate.Timestamp.After(b.candidate.Timestamp)
		}
		return a.candidate.SourceKey > b.candidate.SourceKey
	})

	winner := scoredCandidates[0]
	conflicting := make([]string, 0, len(scoredCandidates)-1)
	for _, s := range scoredCandidates[1:] {
		conflicting = append(conflicting, conflictingSourceID(s.candidate))
	}

	return Decision{
		Winner:             winner.candidate,
		WinnerValue:        winner.candidate.Value,
		Reason:             "highest effective priority among conflicting candidates",
		ConflictingSources: conflicting,
		AuthorityRule:      "general_hierarchy_" + string(winner.candidate.Source),
		Confidence:         winner.candidate.Confidence,
		EffectivePriority:  winner.effPrio,
	}
}

func (m *Matrix) now() int64 {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC().Unix()
}
