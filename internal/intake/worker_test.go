package intake

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/authority"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/extract/deterministic"
	"github.com/cschwartz85032/loanserve-sub007/internal/lineage"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
)

func newHandler() (*Handler, *MemoryLoanRepo, *MemoryDatapointRepo, *MemoryDefectRepo) {
	loans := NewMemoryLoanRepo()
	datapoints := NewMemoryDatapointRepo()
	defects := NewMemoryDefectRepo()
	clockFn := func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

	h := &Handler{
		Loans:         loans,
		Documents:     NewMemoryDocumentRepo(),
		Datapoints:    datapoints,
		Defects:       defects,
		Docs:          storage.NewMemoryDocStore(),
		Deterministic: deterministic.NewEngine(),
		Matrix:        &authority.Matrix{Now: func() int64 { return clockFn().Unix() }},
		Lineage:       &lineage.Builder{TenantID: "tenant-1", ExtractorVersion: "det-1", Clock: clockFn},
		Clock:         clockFn,
	}
	return h, loans, datapoints, defects
}

func TestIntake_CSVHappyPath(t *testing.T) {
	h, _, datapoints, defects := newHandler()

	payload := Payload{
		DocumentID: "doc-1",
		LoanURN:    "urn:loan:csv-1",
		TenantID:   "tenant-1",
		FileType:   domain.DocCSV,
		FileBytes:  []byte("loan_amount,borrower_name\n250000,Jane Doe\n"),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	item := &domain.WorkItem{ID: "wi-1", TenantID: "tenant-1", Type: "intake", Payload: raw, MaxAttempts: 3}
	result := h.Execute(context.Background(), item, "exec-1")
	require.True(t, result.Success)

	dp, err := datapoints.Get(context.Background(), mustLoan(h, "urn:loan:csv-1").ID, "loan_amount")
	require.NoError(t, err)
	require.NotNil(t, dp)
	require.Equal(t, "250000", dp.Value)
	require.Empty(t, defects.All())
}

func TestIntake_InvestorDirectiveOutranksDocumentParse(t *testing.T) {
	h, _, datapoints, _ := newHandler()

	payload := Payload{
		LoanURN:   "urn:loan:csv-2",
		TenantID:  "tenant-1",
		FileType:  domain.DocCSV,
		FileBytes: []byte("loan_amount\n250000\n"),
		InvestorDirectives: map[string]string{"loan_amount": "300000"},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	item := &domain.WorkItem{ID: "wi-2", TenantID: "tenant-1", Type: "intake", Payload: raw, MaxAttempts: 3}
	result := h.Execute(context.Background(), item, "exec-2")
	require.True(t, result.Success)

	dp, err := datapoints.Get(context.Background(), mustLoan(h, "urn:loan:csv-2").ID, "loan_amount")
	require.NoError(t, err)
	require.Equal(t, "300000", dp.Value, "investor_directive must outrank document_parse")
}

func TestIntake_ValidationFailureMarksConflicts(t *testing.T) {
	h, loans, _, defects := newHandler()

	payload := Payload{
		LoanURN:   "urn:loan:csv-3",
		TenantID:  "tenant-1",
		FileType:  domain.DocCSV,
		FileBytes: []byte("loan_amount\n0\n"),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	item := &domain.WorkItem{ID: "wi-3", TenantID: "tenant-1", Type: "intake", Payload: raw, MaxAttempts: 3}
	result := h.Execute(context.Background(), item, "exec-3")
	require.True(t, result.Success)
	require.NotEmpty(t, defects.All())

	loan, err := loans.GetOrCreateByURN(context.Background(), "tenant-1", "urn:loan:csv-3")
	require.NoError(t, err)
	require.Equal(t, domain.LoanConflicts, loan.Status)
}

func TestIntake_MalformedPayloadIsNonRetryable(t *testing.T) {
	h, _, _, _ := newHandler()
	item := &domain.WorkItem{ID: "wi-4", TenantID: "tenant-1", Type: "intake", Payload: []byte("not json"), MaxAttempts: 3}
	result := h.Execute(context.Background(), item, "exec-4")
	require.False(t, result.Success)
	require.False(t, result.ShouldRetry)
}

func mustLoan(h *Handler, urn string) *domain.LoanCandidate {
	loan, _ := h.Loans.GetOrCreateByURN(context.Background(), "tenant-1", urn)
	return loan
}
