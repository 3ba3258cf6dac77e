package remittance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

var (
	errAlreadyExists = errors.New("remittance: run already exists for this period")
	errNotFound      = errors.New("remittance: payout not found")
)

// HoldingRepo lists active investor holdings.
type HoldingRepo interface {
	ActiveByInvestor(ctx context.Context, tenantID string, investorID uuid.UUID) ([]domain.InvestorHolding, error)
}

// LedgerRepo reads in-period allocations and the amortization schedule.
type LedgerRepo interface {
	AllocationsInPeriod(ctx context.Context, tenantID string, loanID uuid.UUID, start, end int64) ([]domain.LedgerAllocation, error)
	Schedule(ctx context.Context, loanID uuid.UUID) ([]domain.ScheduleRow, error)
}

// RunRepo persists RemittanceRun rows, enforcing the unique
// (tenantId, investorId, periodStart, periodEnd) constraint (§4.8
// idempotency).
type RunRepo interface {
	// FindExisting returns the run already recorded for this period, or
	// (nil, nil) if none exists.
	FindExisting(ctx context.Context, tenantID string, investorID uuid.UUID, start, end int64) (*domain.RemittanceRun, error)
	Create(ctx context.Context, run *domain.RemittanceRun) error
	CreateItems(ctx context.Context, items []domain.RemittanceItem) error
	CreatePayout(ctx context.Context, payout *domain.RemittancePayout) error
	UpdatePayoutStatus(ctx context.Context, payoutID uuid.UUID, status domain.PayoutStatus, errMsg string) error
	CreateGLEntries(ctx context.Context, entries []domain.GLEntry) error
}

// MemoryHoldingRepo, MemoryLedgerRepo, and MemoryRunRepo are in-memory
// implementations for tests and single-process demo runs.
type MemoryHoldingRepo struct {
	mu       sync.Mutex
	holdings map[uuid.UUID][]domain.InvestorHolding
}

func NewMemoryHoldingRepo() *MemoryHoldingRepo {
	return &MemoryHoldingRepo{holdings: make(map[uuid.UUID][]domain.InvestorHolding)}
}

func (r *MemoryHoldingRepo) Add(h domain.InvestorHolding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holdings[h.InvestorID] = append(r.holdings[h.InvestorID], h)
}

func (r *MemoryHoldingRepo) ActiveByInvestor(ctx context.Context, tenantID string, investorID uuid.UUID) ([]domain.InvestorHolding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.InvestorHolding
	for _, h := range r.holdings[investorID] {
		if h.Active && h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out, nil
}

type MemoryLedgerRepo struct {
	mu          sync.Mutex
	allocations map[uuid.UUID][]domain.LedgerAllocation
	schedules   map[uuid.UUID][]domain.ScheduleRow
}

func NewMemoryLedgerRepo() *MemoryLedgerRepo {
	return &MemoryLedgerRepo{
		allocations: make(map[uuid.UUID][]domain.LedgerAllocation),
		schedules:   make(map[uuid.UUID][]domain.ScheduleRow),
	}
}

func (r *MemoryLedgerRepo) AddAllocation(a domain.LedgerAllocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations[a.LoanID] = append(r.allocations[a.LoanID], a)
}

func (r *MemoryLedgerRepo) AddScheduleRow(s domain.ScheduleRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.LoanID] = append(r.schedules[s.LoanID], s)
}

func (r *MemoryLedgerRepo) AllocationsInPeriod(ctx context.Context, tenantID string, loanID uuid.UUID, start, end int64) ([]domain.LedgerAllocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerAllocation
	for _, a := range r.allocations[loanID] {
		ts := a.PostedAt.Unix()
		if ts >= start && ts <= end {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryLedgerRepo) Schedule(ctx context.Context, loanID uuid.UUID) ([]domain.ScheduleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules[loanID], nil
}

type MemoryRunRepo struct {
	mu      sync.Mutex
	runs    map[string]*domain.RemittanceRun
	items   []domain.RemittanceItem
	payouts map[uuid.UUID]*domain.RemittancePayout
	gl      []domain.GLEntry
}

func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{runs: make(map[string]*domain.RemittanceRun), payouts: make(map[uuid.UUID]*domain.RemittancePayout)}
}

func runKey(tenantID string, investorID uuid.UUID, start, end int64) string {
	return fmt.Sprintf("%s/%s/%d/%d", tenantID, investorID, start, end)
}

func (r *MemoryRunRepo) FindExisting(ctx context.Context, tenantID string, investorID uuid.UUID, start, end int64) (*domain.RemittanceRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runKey(tenantID, investorID, start, end)], nil
}

func (r *MemoryRunRepo) Create(ctx context.Context, run *domain.RemittanceRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := runKey(run.TenantID, run.InvestorID, run.PeriodStart.Unix(), run.PeriodEnd.Unix())
	if _, exists := r.runs[k]; exists {
		return errAlreadyExists
	}
	r.runs[k] = run
	return nil
}

func (r *MemoryRunRepo) CreateItems(ctx context.Context, items []domain.RemittanceItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
	return nil
}

func (r *MemoryRunRepo) Items() []domain.RemittanceItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RemittanceItem(nil), r.items...)
}

func (r *MemoryRunRepo) CreatePayout(ctx context.Context, payout *domain.RemittancePayout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts[payout.ID] = payout
	return nil
}

func (r *MemoryRunRepo) Payout(id uuid.UUID) *domain.RemittancePayout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payouts[id]
}

func (r *MemoryRunRepo) UpdatePayoutStatus(ctx context.Context, payoutID uuid.UUID, status domain.PayoutStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[payoutID]
	if !ok {
		return errNotFound
	}
	p.Status = status
	p.Error = errMsg
	return nil
}

func (r *MemoryRunRepo) CreateGLEntries(ctx context.Context, entries []domain.GLEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gl = append(r.gl, entries...)
	return nil
}

func (r *MemoryRunRepo) GLEntries() []domain.GLEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.GLEntry(nil), r.gl...)
}
