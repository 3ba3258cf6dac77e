package lineage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// Store is the append-only persistence interface for LineageRecords.
type Store interface {
	Put(ctx context.Context, rec *domain.LineageRecord) error
	Get(ctx context.Context, tenantID, lineageID string) (*domain.LineageRecord, error)
}

// MemoryStore is an in-memory Store, used in tests and single-process runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.LineageRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*domain.LineageRecord)}
}

func key(tenantID, lineageID string) string { return tenantID + "/" + lineageID }

// Put stores rec. Lineage is append-only: overwriting an existing ID is
// rejected, matching §4.5 "only allowed to grow".
func (s *MemoryStore) Put(ctx context.Context, rec *domain.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(rec.TenantID, rec.LineageID)
	if _, exists := s.records[k]; exists {
		return fmt.Errorf("lineage: record %s already exists (append-only)", rec.LineageID)
	}
	s.records[k] = rec
	return nil
}

// Get returns the record with the given ID, or (nil, nil) if absent.
func (s *MemoryStore) Get(ctx context.Context, tenantID, lineageID string) (*domain.LineageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(tenantID, lineageID)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// PostgresStore persists LineageRecords to the lineage_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Put inserts rec; a duplicate lineage_id is rejected by the table's
// primary key, enforcing append-only at the storage layer too.
func (s *PostgresStore) Put(ctx context.Context, rec *domain.LineageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lineage_records
			(lineage_id, tenant_id, field_name, value, source, confidence,
			 document_reference, derived_from, transformations,
			 extractor_version, prompt_version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rec.LineageID, rec.TenantID, rec.FieldName, rec.Value, rec.Source, rec.Confidence,
		rec.DocumentReference, rec.DerivedFrom, rec.Transformations,
		rec.ExtractorVersion, rec.PromptVersion, rec.CreatedAt)
	return err
}

// Get fetches a single record by ID.
func (s *PostgresStore) Get(ctx context.Context, tenantID, lineageID string) (*domain.LineageRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT lineage_id, tenant_id, field_name, value, source, confidence,
		       document_reference, derived_from, transformations,
		       extractor_version, prompt_version, created_at
		FROM lineage_records WHERE tenant_id = $1 AND lineage_id = $2
	`, tenantID, lineageID)

	var rec domain.LineageRecord
	err := row.Scan(&rec.LineageID, &rec.TenantID, &rec.FieldName, &rec.Value, &rec.Source, &rec.Confidence,
		&rec.DocumentReference, &rec.DerivedFrom, &rec.Transformations,
		&rec.ExtractorVersion, &rec.PromptVersion, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &rec, err
}
