package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
)

const xmlMapper = `
format: xml
root: LOAN_EXPORT
required: [loan_amount, borrower_name]
sections:
  LoanInfo:
    loan_amount: "/LOAN/AMOUNT"
    interest_rate: "/LOAN/RATE"
  BorrowerInfo:
    borrower_name: "/BORROWER/NAME"
`

const csvMapper = `
format: csv
required: [loan_amount]
csv:
  header: [LoanAmount, BorrowerName]
  mapping:
    LoanAmount: loan_amount
    BorrowerName: borrower_name
`

func newEngine(t *testing.T, mapperDocs map[string][]byte) (*Engine, *MemoryDatapointRepo, *MemoryExportRepo) {
	t.Helper()
	loader, err := NewMemoryMapperLoader(mapperDocs)
	require.NoError(t, err)

	dps := NewMemoryDatapointRepo()
	exports := NewMemoryExportRepo()
	clockFn := func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

	return &Engine{
		Mappers: loader, Datapoints: dps, Exports: exports,
		Docs: storage.NewMemoryDocStore(), Clock: clockFn,
	}, dps, exports
}

func TestEngine_Run_XMLHappyPathIncludesLineageComments(t *testing.T) {
	e, dps, exports := newEngine(t, map[string][]byte{"fannie:v1": []byte(xmlMapper)})

	loanID := uuid.New()
	docID := uuid.New()
	dps.Put(loanID, domain.Datapoint{Key: "loan_amount", Value: "250000", EvidenceDocID: &docID, EvidenceTextHash: "abc123"})
	dps.Put(loanID, domain.Datapoint{Key: "borrower_name", Value: "Jane Doe"})

	result, err := e.Run(context.Background(), "tenant-1", loanID, domain.TemplateFannie, "v1")
	require.NoError(t, err)
	require.NotEmpty(t, result.SHA256)

	body := string(result.Bytes)
	require.Contains(t, body, "<LOAN_EXPORT>")
	require.Contains(t, body, "LINEAGE canonical:loan_amount")
	require.Contains(t, body, "hash:abc123")
	require.Contains(t, body, "<AMOUNT>250000.0</AMOUNT>")
	require.Contains(t, body, "<NAME>Jane Doe</NAME>")

	all := exports.exports
	require.Len(t, all, 1)
	for _, exp := range all {
		require.Equal(t, domain.ExportSucceeded, exp.Status)
		require.Equal(t, result.SHA256, exp.FileSHA256)
	}
}

func TestEngine_Run_MissingRequiredKeyFailsDeterministically(t *testing.T) {
	e, dps, exports := newEngine(t, map[string][]byte{"fannie:v1": []byte(xmlMapper)})

	loanID := uuid.New()
	dps.Put(loanID, domain.Datapoint{Key: "loan_amount", Value: "250000"})
	// borrower_name missing

	_, err := e.Run(context.Background(), "tenant-1", loanID, domain.TemplateFannie, "v1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required keys")
	require.Contains(t, err.Error(), "borrower_name")

	all := exports.exports
	require.Len(t, all, 1)
	for _, exp := range all {
		require.Equal(t, domain.ExportFailed, exp.Status)
		require.NotEmpty(t, exp.Errors)
	}
}

func TestEngine_Run_CSVQuotesSpecialCharacters(t *testing.T) {
	e, dps, _ := newEngine(t, map[string][]byte{"custom:v1": []byte(csvMapper)})

	loanID := uuid.New()
	dps.Put(loanID, domain.Datapoint{Key: "loan_amount", Value: "100000"})
	dps.Put(loanID, domain.Datapoint{Key: "borrower_name", Value: `Jane "JD" Doe, Esq.`})

	result, err := e.Run(context.Background(), "tenant-1", loanID, domain.TemplateCustom, "v1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(result.Bytes)), "\r\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], `"Jane ""JD"" Doe, Esq."`)
}

func TestCoerceValue_BooleanAndMoney(t *testing.T) {
	require.Equal(t, "true", CoerceValue("escrow_required", "Yes"))
	require.Equal(t, "false", CoerceValue("escrow_required", "no"))
	require.Equal(t, "250000.0", CoerceValue("loan_amount", "250000"))
	require.Equal(t, "Jane Doe", CoerceValue("borrower_name", "Jane Doe"))
}
