package authority

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

func cand(source domain.CandidateSource, value string, confidence float64, ts time.Time, sourceKey string) domain.Candidate {
	return domain.Candidate{Source: source, Value: value, Confidence: confidence, Timestamp: ts, SourceKey: sourceKey}
}

func TestMatrix_SingleCandidate_NoConflict(t *testing.T) {
	m := &Matrix{}
	d := m.Resolve("loan_amount", []domain.Candidate{cand(domain.SourceDocumentParse, "100000", 1.0, time.Now(), "doc-1")})
	require.Equal(t, "no_conflict", d.AuthorityRule)
	require.Equal(t, "100000", d.WinnerValue)
}

// TestMatrix_AuthorityWinsInvestorOverDocument is spec.md's S1 scenario
// verbatim: document_parse loses to investor_directive, and the Decision
// carries the exact literal authorityRule and conflictingSources shapes.
func TestMatrix_AuthorityWinsInvestorOverDocument(t *testing.T) {
	m := &Matrix{}
	ts := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	candidates := []domain.Candidate{
		cand(domain.SourceDocumentParse, "250000", 0.9, ts, "a"),
		cand(domain.SourceInvestorDirective, "260000", 1.0, ts, "b"),
	}
	d := m.Resolve("loan_amount", candidates)
	require.Equal(t, "260000", d.WinnerValue)
	require.Equal(t, "general_hierarchy_investor_directive", d.AuthorityRule)
	require.Equal(t, []string{fmt.Sprintf("document_parse_%d", ts.Unix())}, d.ConflictingSources)
}

func TestMatrix_FieldOverride_BoostsVendorForPropertyAddress(t *testing.T) {
	m := &Matrix{}
	now := time.Now()
	candidates := []domain.Candidate{
		cand(domain.SourceManualEntry, "123 Oak St", 0.9, now, "a"),
		cand(domain.SourceVendorAPI, "123 Oak Street", 0.9, now, "b"),
	}
	d := m.Resolve("property_address", candidates)
	require.Equal(t, "123 Oak Street", d.WinnerValue, "vendor_api is boosted to 1000 for property_address")
}

func TestMatrix_TieBreaksOnConfidenceThenTimestampThenSourceKey(t *testing.T) {
	m := &Matrix{}
	now := time.Now()
	candidates := []domain.Candidate{
		cand(domain.SourceDocumentParse, "a-val", 0.5, now, "zzz"),
		cand(domain.SourceDocumentParse, "b-val", 0.9, now, "aaa"),
	}
	d := m.Resolve("notes", candidates)
	require.Equal(t, "b-val", d.WinnerValue, "higher confidence must win the tie on equal base priority")

	// Timestamps after Now clamp age to 0 days, so equal confidence gives
	// equal p_eff and the later tie-breaks decide.
	ts := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	fixed := &Matrix{Now: func() int64 { return ts.Add(-24 * time.Hour).Unix() }}

	d = fixed.Resolve("notes", []domain.Candidate{
		cand(domain.SourceDocumentParse, "older", 0.8, ts, "zzz"),
		cand(domain.SourceDocumentParse, "newer", 0.8, ts.Add(time.Hour), "aaa"),
	})
	require.Equal(t, "newer", d.WinnerValue, "newer timestamp must win on equal p_eff and confidence")

	d = fixed.Resolve("notes", []domain.Candidate{
		cand(domain.SourceDocumentParse, "small-key", 0.8, ts, "aaa"),
		cand(domain.SourceDocumentParse, "large-key", 0.8, ts, "zzz"),
	})
	require.Equal(t, "large-key", d.WinnerValue, "larger sourceKey must win when everything else ties")
}

func TestMatrix_AgeDecaysEffectivePriority(t *testing.T) {
	base := effectivePriority(600, 0.8, 0)
	aged := effectivePriority(600, 0.8, 60)
	require.Less(t, aged, base)
}

func TestValidateField_LoanAmountOutOfRange(t *testing.T) {
	require.Nil(t, ValidateField("loan_amount", "250000"))
	require.NotNil(t, ValidateField("loan_amount", "0"))
	require.NotNil(t, ValidateField("loan_amount", "20000000"))
}

func TestValidateCrossField_MaturityBeforeOrigination(t *testing.T) {
	issues := ValidateCrossField("2030-01-01", "2020-01-01", 0, 0)
	require.Len(t, issues, 1)
	require.Equal(t, "maturity_date", issues[0].Key)
}

func TestValidateCrossField_PaymentOutsideTolerance(t *testing.T) {
	issues := ValidateCrossField("", "", 1000, 500)
	require.Len(t, issues, 1)
	require.Equal(t, "payment_amount", issues[0].Key)
}
