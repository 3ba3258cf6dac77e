// Package intake implements the Document Intake Worker (C9): the 10-step
// flow of spec.md §4.6, wired as a worker.Handler run by the self-healing
// worker runtime.
package intake

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// LoanRepo creates/looks up LoanCandidates by URN and persists status
// transitions.
type LoanRepo interface {
	GetOrCreateByURN(ctx context.Context, tenantID, loanURN string) (*domain.LoanCandidate, error)
	UpdateStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) error
}

// DocumentRepo persists Document rows.
type DocumentRepo interface {
	Create(ctx context.Context, doc *domain.Document) error
}

// DatapointRepo upserts Datapoints, enforcing "only if the new decision's
// authority priority >= stored one" (§4.6 step 8).
type DatapointRepo interface {
	Upsert(ctx context.Context, dp *domain.Datapoint) error
	Get(ctx context.Context, loanID uuid.UUID, key string) (*domain.Datapoint, error)
}

// DefectRepo persists validation Defects.
type DefectRepo interface {
	Create(ctx context.Context, d *domain.Defect) error
}

// MemoryLoanRepo is an in-memory LoanRepo for tests.
type MemoryLoanRepo struct {
	mu    sync.Mutex
	byURN map[string]*domain.LoanCandidate
}

func NewMemoryLoanRepo() *MemoryLoanRepo {
	return &MemoryLoanRepo{byURN: make(map[string]*domain.LoanCandidate)}
}

func (r *MemoryLoanRepo) GetOrCreateByURN(ctx context.Context, tenantID, loanURN string) (*domain.LoanCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byURN[loanURN]; ok {
		return existing, nil
	}
	l := &domain.LoanCandidate{ID: uuid.New(), TenantID: tenantID, LoanURN: loanURN, Status: domain.LoanIngesting}
	r.byURN[loanURN] = l
	return l, nil
}

func (r *MemoryLoanRepo) UpdateStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.byURN {
		if l.ID == loanID {
			l.Status = status
			return nil
		}
	}
	return nil
}

// MemoryDocumentRepo is an in-memory DocumentRepo for tests.
type MemoryDocumentRepo struct {
	mu   sync.Mutex
	docs []*domain.Document
}

func NewMemoryDocumentRepo() *MemoryDocumentRepo { return &MemoryDocumentRepo{} }

func (r *MemoryDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

// MemoryDatapointRepo is an in-memory DatapointRepo for tests.
type MemoryDatapointRepo struct {
	mu   sync.Mutex
	byLK map[uuid.UUID]map[string]*domain.Datapoint
}

func NewMemoryDatapointRepo() *MemoryDatapointRepo {
	return &MemoryDatapointRepo{byLK: make(map[uuid.UUID]map[string]*domain.Datapoint)}
}

func (r *MemoryDatapointRepo) Upsert(ctx context.Context, dp *domain.Datapoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byLK[dp.LoanID] == nil {
		r.byLK[dp.LoanID] = make(map[string]*domain.Datapoint)
	}
	if existing, ok := r.byLK[dp.LoanID][dp.Key]; ok && existing.AuthorityPriority > dp.AuthorityPriority {
		return nil
	}
	r.byLK[dp.LoanID][dp.Key] = dp
	return nil
}

func (r *MemoryDatapointRepo) Get(ctx context.Context, loanID uuid.UUID, key string) (*domain.Datapoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byLK[loanID]; ok {
		return m[key], nil
	}
	return nil, nil
}

// MemoryDefectRepo is an in-memory DefectRepo for tests.
type MemoryDefectRepo struct {
	mu      sync.Mutex
	defects []*domain.Defect
}

func NewMemoryDefectRepo() *MemoryDefectRepo { return &MemoryDefectRepo{} }

func (r *MemoryDefectRepo) Create(ctx context.Context, d *domain.Defect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defects = append(r.defects, d)
	return nil
}

func (r *MemoryDefectRepo) All() []*domain.Defect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Defect, len(r.defects))
	copy(out, r.defects)
	return out
}
