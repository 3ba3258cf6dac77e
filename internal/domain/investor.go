package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccrualBasis describes the day-count convention used for interest accrual.
type AccrualBasis string

const (
	Accrual30360  AccrualBasis = "30/360"
	AccrualActual AccrualBasis = "ACTUAL/360"
)

// InvestorHolding is an investor's participation share in a loan plus its
// fee/strip terms (§3).
type InvestorHolding struct {
	TenantID        string       `db:"tenant_id"`
	InvestorID      uuid.UUID    `db:"investor_id"`
	LoanID          uuid.UUID    `db:"loan_id"`
	ParticipationPct float64     `db:"participation_pct"`
	SvcFeeBps       int          `db:"svc_fee_bps"`
	StripBps        int          `db:"strip_bps"`
	PassEscrow      bool         `db:"pass_escrow"`
	AccrualBasis    AccrualBasis `db:"accrual_basis"`
	Active          bool         `db:"active"`
	WebhookURL      string       `db:"webhook_url"`
	WebhookSecret   string       `db:"webhook_secret"`
}

// RemittanceCadence is the period cadence for an investor's remittance runs.
type RemittanceCadence string

const (
	CadenceMonthly RemittanceCadence = "MONTHLY"
	CadenceWeekly  RemittanceCadence = "WEEKLY"
)

// PayoutStatus is the lifecycle state of a RemittancePayout (§4.8).
type PayoutStatus string

const (
	PayoutRequested PayoutStatus = "Requested"
	PayoutSent      PayoutStatus = "Sent"
	PayoutSettled   PayoutStatus = "Settled"
	PayoutFailed    PayoutStatus = "Failed"
)

// RemittanceRun is unique per (tenantId, investorId, periodStart, periodEnd).
type RemittanceRun struct {
	ID          uuid.UUID `db:"id"`
	TenantID    string    `db:"tenant_id"`
	InvestorID  uuid.UUID `db:"investor_id"`
	PeriodStart time.Time `db:"period_start"`
	PeriodEnd   time.Time `db:"period_end"`
	Cutoff      time.Time `db:"cutoff"`
	CreatedAt   time.Time `db:"created_at"`
}

// RemittanceItem is one row per held loan for a RemittanceRun.
type RemittanceItem struct {
	ID           uuid.UUID `db:"id"`
	RunID        uuid.UUID `db:"run_id"`
	LoanID       uuid.UUID `db:"loan_id"`
	UPBBegin     int64     `db:"upb_begin"`  // cents
	UPBEnd       int64     `db:"upb_end"`    // cents
	Principal    int64     `db:"principal"`  // cents
	Interest     int64     `db:"interest"`   // cents
	Escrow       int64     `db:"escrow"`     // cents
	Fees         int64     `db:"fees"`       // cents
	SvcFee       int64     `db:"svc_fee"`    // cents
	StripIO      int64     `db:"strip_io"`   // cents
	NetRemit     int64     `db:"net_remit"`  // cents
}

// RemittancePayout is one row per RemittanceRun (§4.8 state machine).
type RemittancePayout struct {
	ID        uuid.UUID    `db:"id"`
	RunID     uuid.UUID    `db:"run_id"`
	Amount    int64        `db:"amount"` // cents
	Status    PayoutStatus `db:"status"`
	Reference string       `db:"reference"`
	Error     string       `db:"error"`
	CreatedAt time.Time    `db:"created_at"`
	SentAt    *time.Time   `db:"sent_at"`
	SettledAt *time.Time   `db:"settled_at"`
}

// GLEntry is a double-entry ledger line produced alongside a payout.
type GLEntry struct {
	ID        uuid.UUID `db:"id"`
	PayoutID  uuid.UUID `db:"payout_id"`
	Account   string    `db:"account"`
	Debit     int64     `db:"debit"`  // cents
	Credit    int64     `db:"credit"` // cents
	CreatedAt time.Time `db:"created_at"`
}
