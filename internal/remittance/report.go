package remittance

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/pkg/money"
)

// BuildLoanActivityReport renders the §4.8 "loan_activity" CSV report: one
// header row plus one row per RemittanceItem.
func BuildLoanActivityReport(items []domain.RemittanceItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"LoanId", "UPB_Beg", "UPB_End", "Principal", "Interest", "Escrow", "Fees", "SvcFee", "StripIO", "Net"}); err != nil {
		return nil, err
	}
	for _, it := range items {
		row := []string{
			it.LoanID.String(),
			money.Amount(it.UPBBegin).String(), money.Amount(it.UPBEnd).String(),
			money.Amount(it.Principal).String(), money.Amount(it.Interest).String(),
			money.Amount(it.Escrow).String(), money.Amount(it.Fees).String(),
			money.Amount(it.SvcFee).String(), money.Amount(it.StripIO).String(),
			money.Amount(it.NetRemit).String(),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ObjectStorePath is the deterministic object-store path for a run's report
// (§4.8 "stored at a deterministic object-store path"), keyed by the
// period's start/end dates rather than the run ID since those are the
// natural idempotency key for a (tenant, investor) remittance period.
func ObjectStorePath(tenantID string, investorID uuid.UUID, periodStart, periodEnd time.Time) string {
	return fmt.Sprintf("tenants/%s/remittances/%s_%s_%s_loan_activity.csv",
		tenantID, investorID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"))
}
