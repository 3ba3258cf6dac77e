package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

var errNotFound = errors.New("export: not found")

// DatapointRepo reads the current canonical Datapoints for a loan (§4.9
// step 2).
type DatapointRepo interface {
	AllForLoan(ctx context.Context, tenantID string, loanID uuid.UUID) (map[string]domain.Datapoint, error)
}

// ExportRepo persists Export submission rows.
type ExportRepo interface {
	Create(ctx context.Context, exp *domain.Export) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, fileURI, sha256 string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errs []string, at time.Time) error
}

// MemoryDatapointRepo is an in-memory DatapointRepo for tests.
type MemoryDatapointRepo struct {
	mu   sync.Mutex
	data map[uuid.UUID]map[string]domain.Datapoint
}

func NewMemoryDatapointRepo() *MemoryDatapointRepo {
	return &MemoryDatapointRepo{data: make(map[uuid.UUID]map[string]domain.Datapoint)}
}

func (r *MemoryDatapointRepo) Put(loanID uuid.UUID, dp domain.Datapoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[loanID] == nil {
		r.data[loanID] = make(map[string]domain.Datapoint)
	}
	r.data[loanID][dp.Key] = dp
}

func (r *MemoryDatapointRepo) AllForLoan(ctx context.Context, tenantID string, loanID uuid.UUID) (map[string]domain.Datapoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.Datapoint, len(r.data[loanID]))
	for k, v := range r.data[loanID] {
		out[k] = v
	}
	return out, nil
}

// MemoryExportRepo is an in-memory ExportRepo for tests.
type MemoryExportRepo struct {
	mu      sync.Mutex
	exports map[uuid.UUID]*domain.Export
}

func NewMemoryExportRepo() *MemoryExportRepo {
	return &MemoryExportRepo{exports: make(map[uuid.UUID]*domain.Export)}
}

func (r *MemoryExportRepo) Create(ctx context.Context, exp *domain.Export) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[exp.ID] = exp
	return nil
}

func (r *MemoryExportRepo) Get(id uuid.UUID) *domain.Export {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exports[id]
}

func (r *MemoryExportRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, fileURI, sha256 string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.exports[id]
	if !ok {
		return errNotFound
	}
	exp.Status = domain.ExportSucceeded
	exp.FileURI = fileURI
	exp.FileSHA256 = sha256
	t := at
	exp.CompletedAt = &t
	return nil
}

func (r *MemoryExportRepo) MarkFailed(ctx context.Context, id uuid.UUID, errs []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.exports[id]
	if !ok {
		return errNotFound
	}
	exp.Status = domain.ExportFailed
	exp.Errors = errs
	t := at
	exp.CompletedAt = &t
	return nil
}
