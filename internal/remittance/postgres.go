package remittance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// PostgresHoldingRepo reads investor holdings from the investor_holdings
// table.
type PostgresHoldingRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresHoldingRepo creates a PostgresHoldingRepo backed by pool.
func NewPostgresHoldingRepo(pool *pgxpool.Pool) *PostgresHoldingRepo {
	return &PostgresHoldingRepo{pool: pool}
}

// ActiveByInvestor returns every active holding for investorID.
func (r *PostgresHoldingRepo) ActiveByInvestor(ctx context.Context, tenantID string, investorID uuid.UUID) ([]domain.InvestorHolding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, investor_id, loan_id, participation_pct, svc_fee_bps, strip_bps,
		       pass_escrow, accrual_basis, active, webhook_url, webhook_secret
		FROM investor_holdings WHERE tenant_id = $1 AND investor_id = $2 AND active = true
	`, tenantID, investorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InvestorHolding
	for rows.Next() {
		var h domain.InvestorHolding
		if err := rows.Scan(&h.TenantID, &h.InvestorID, &h.LoanID, &h.ParticipationPct, &h.SvcFeeBps, &h.StripBps,
			&h.PassEscrow, &h.AccrualBasis, &h.Active, &h.WebhookURL, &h.WebhookSecret); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// TenantInvestor identifies one (tenant, investor) pair with at least one
// active holding, for the scheduler's remittance fan-out (it has no other
// way to discover which investors need a run without a tenant/investor
// pair already in hand).
type TenantInvestor struct {
	TenantID   string
	InvestorID uuid.UUID
}

// DistinctActiveInvestors returns every (tenant, investor) pair with at
// least one active holding.
func (r *PostgresHoldingRepo) DistinctActiveInvestors(ctx context.Context) ([]TenantInvestor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT tenant_id, investor_id FROM investor_holdings WHERE active = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TenantInvestor
	for rows.Next() {
		var ti TenantInvestor
		if err := rows.Scan(&ti.TenantID, &ti.InvestorID); err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

// PostgresLedgerRepo reads posted allocations and amortization schedule
// rows from the ledger_allocations/schedule_rows tables.
type PostgresLedgerRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresLedgerRepo creates a PostgresLedgerRepo backed by pool.
func NewPostgresLedgerRepo(pool *pgxpool.Pool) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{pool: pool}
}

// AllocationsInPeriod returns every posted allocation for loanID whose
// posted_at falls within [start, end] (Unix seconds, inclusive).
func (r *PostgresLedgerRepo) AllocationsInPeriod(ctx context.Context, tenantID string, loanID uuid.UUID, start, end int64) ([]domain.LedgerAllocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, loan_id, type, posted_at, principal, interest, escrow, fees
		FROM ledger_allocations
		WHERE tenant_id = $1 AND loan_id = $2
		  AND posted_at >= to_timestamp($3) AND posted_at <= to_timestamp($4)
		ORDER BY posted_at ASC
	`, tenantID, loanID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerAllocation
	for rows.Next() {
		var a domain.LedgerAllocation
		if err := rows.Scan(&a.ID, &a.TenantID, &a.LoanID, &a.Type, &a.PostedAt, &a.Principal, &a.Interest, &a.Escrow, &a.Fees); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Schedule returns loanID's full amortization schedule, in due-date order.
func (r *PostgresLedgerRepo) Schedule(ctx context.Context, loanID uuid.UUID) ([]domain.ScheduleRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, loan_id, due_date, principal_balance_after
		FROM schedule_rows WHERE loan_id = $1 ORDER BY due_date ASC
	`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleRow
	for rows.Next() {
		var s domain.ScheduleRow
		if err := rows.Scan(&s.ID, &s.LoanID, &s.DueDate, &s.PrincipalBalanceAfter); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PostgresRunRepo persists RemittanceRuns, RemittanceItems,
// RemittancePayouts and GLEntries, enforcing the unique
// (tenant_id, investor_id, period_start, period_end) constraint at the
// table level so FindExisting/Create stay race-free across workers.
type PostgresRunRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRunRepo creates a PostgresRunRepo backed by pool.
func NewPostgresRunRepo(pool *pgxpool.Pool) *PostgresRunRepo {
	return &PostgresRunRepo{pool: pool}
}

// FindExisting returns the run already recorded for this period, or
// (nil, nil) if none exists.
func (r *PostgresRunRepo) FindExisting(ctx context.Context, tenantID string, investorID uuid.UUID, start, end int64) (*domain.RemittanceRun, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, investor_id, period_start, period_end, cutoff, created_at
		FROM remittance_runs
		WHERE tenant_id = $1 AND investor_id = $2
		  AND period_start = to_timestamp($3) AND period_end = to_timestamp($4)
	`, tenantID, investorID, start, end)

	var run domain.RemittanceRun
	err := row.Scan(&run.ID, &run.TenantID, &run.InvestorID, &run.PeriodStart, &run.PeriodEnd, &run.Cutoff, &run.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &run, err
}

// Create inserts run, relying on the table's unique period constraint to
// surface errAlreadyExists-equivalent races as a plain SQL error.
func (r *PostgresRunRepo) Create(ctx context.Context, run *domain.RemittanceRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO remittance_runs (id, tenant_id, investor_id, period_start, period_end, cutoff, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, run.ID, run.TenantID, run.InvestorID, run.PeriodStart, run.PeriodEnd, run.Cutoff, run.CreatedAt)
	return err
}

// CreateItems bulk-inserts items within a single transaction.
func (r *PostgresRunRepo) CreateItems(ctx context.Context, items []domain.RemittanceItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO remittance_items
				(id, run_id, loan_id, upb_begin, upb_end, principal, interest, escrow, fees, svc_fee, strip_io, net_remit)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, item.ID, item.RunID, item.LoanID, item.UPBBegin, item.UPBEnd, item.Principal, item.Interest,
			item.Escrow, item.Fees, item.SvcFee, item.StripIO, item.NetRemit); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// CreatePayout inserts payout.
func (r *PostgresRunRepo) CreatePayout(ctx context.Context, payout *domain.RemittancePayout) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO remittance_payouts (id, run_id, amount, status, reference, error, created_at, sent_at, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, payout.ID, payout.RunID, payout.Amount, payout.Status, payout.Reference, payout.Error,
		payout.CreatedAt, payout.SentAt, payout.SettledAt)
	return err
}

// UpdatePayoutStatus transitions a payout's status, stamping sent_at/
// settled_at when the new status is Sent/Settled.
func (r *PostgresRunRepo) UpdatePayoutStatus(ctx context.Context, payoutID uuid.UUID, status domain.PayoutStatus, errMsg string) error {
	now := time.Now().UTC()
	var sentAt, settledAt *time.Time
	switch status {
	case domain.PayoutSent:
		sentAt = &now
	case domain.PayoutSettled:
		settledAt = &now
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE remittance_payouts
		SET status = $2, error = $3,
		    sent_at = COALESCE(sent_at, $4),
		    settled_at = COALESCE(settled_at, $5)
		WHERE id = $1
	`, payoutID, status, errMsg, sentAt, settledAt)
	return err
}

// CreateGLEntries bulk-inserts entries within a single transaction.
func (r *PostgresRunRepo) CreateGLEntries(ctx context.Context, entries []domain.GLEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO gl_entries (id, payout_id, account, debit, credit, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, e.ID, e.PayoutID, e.Account, e.Debit, e.Credit, e.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
