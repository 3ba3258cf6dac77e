package domain

import (
	"time"

	"github.com/google/uuid"
)

// AllocationType enumerates how a ledger allocation's amount was applied.
type AllocationType string

const (
	AllocationPayment    AllocationType = "PAYMENT"
	AllocationAdjustment AllocationType = "ADJUSTMENT"
)

// LedgerAllocation is one posted principal/interest/escrow/fees split of a
// payment or adjustment against a loan (§4.8 step 1: "sum in-period PAYMENT
// and ADJUSTMENT allocations from the servicing ledger").
type LedgerAllocation struct {
	ID        uuid.UUID      `db:"id"`
	TenantID  string         `db:"tenant_id"`
	LoanID    uuid.UUID      `db:"loan_id"`
	Type      AllocationType `db:"type"`
	PostedAt  time.Time      `db:"posted_at"`
	Principal int64          `db:"principal"` // cents
	Interest  int64          `db:"interest"`   // cents
	Escrow    int64          `db:"escrow"`     // cents
	Fees      int64          `db:"fees"`       // cents
}

// ScheduleRow is one row of a loan's amortization schedule, used to derive
// beginning/ending UPB for a remittance period (§4.8 step 2).
type ScheduleRow struct {
	ID                   uuid.UUID `db:"id"`
	LoanID               uuid.UUID `db:"loan_id"`
	DueDate              time.Time `db:"due_date"`
	PrincipalBalanceAfter int64    `db:"principal_balance_after"` // cents
}
