package intake

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// PostgresLoanRepo persists LoanCandidates to the loan_candidates table.
type PostgresLoanRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresLoanRepo creates a PostgresLoanRepo backed by pool.
func NewPostgresLoanRepo(pool *pgxpool.Pool) *PostgresLoanRepo {
	return &PostgresLoanRepo{pool: pool}
}

// GetOrCreateByURN looks up a loan by its URN, inserting a fresh
// "ingesting" candidate if none exists yet.
func (r *PostgresLoanRepo) GetOrCreateByURN(ctx context.Context, tenantID, loanURN string) (*domain.LoanCandidate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, loan_urn, status, created_at, updated_at, accepted_at
		FROM loan_candidates WHERE tenant_id = $1 AND loan_urn = $2
	`, tenantID, loanURN)

	var l domain.LoanCandidate
	err := row.Scan(&l.ID, &l.TenantID, &l.LoanURN, &l.Status, &l.CreatedAt, &l.UpdatedAt, &l.AcceptedAt)
	if err == nil {
		return &l, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	l = domain.LoanCandidate{TenantID: tenantID, LoanURN: loanURN, Status: domain.LoanIngesting}
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO loan_candidates (tenant_id, loan_urn, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (tenant_id, loan_urn) DO UPDATE SET loan_urn = EXCLUDED.loan_urn
		RETURNING id, created_at, updated_at
	`, tenantID, loanURN, domain.LoanIngesting).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateStatus transitions a loan candidate's status.
func (r *PostgresLoanRepo) UpdateStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE loan_candidates SET status = $2, updated_at = now() WHERE id = $1
	`, loanID, status)
	return err
}

// PostgresDocumentRepo persists Document rows.
type PostgresDocumentRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentRepo creates a PostgresDocumentRepo backed by pool.
func NewPostgresDocumentRepo(pool *pgxpool.Pool) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{pool: pool}
}

// Create inserts doc.
func (r *PostgresDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, loan_id, storage_uri, sha256, doc_type, page_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, doc.ID, doc.TenantID, doc.LoanID, doc.StorageURI, doc.SHA256, doc.DocType, doc.PageCount, doc.CreatedAt)
	return err
}

// PostgresDatapointRepo upserts Datapoints to the datapoints table,
// enforcing the §4.6 step 8 "only if new authority priority >= stored"
// rule at the SQL layer via a conditional WHERE on the UPDATE branch.
type PostgresDatapointRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresDatapointRepo creates a PostgresDatapointRepo backed by pool.
func NewPostgresDatapointRepo(pool *pgxpool.Pool) *PostgresDatapointRepo {
	return &PostgresDatapointRepo{pool: pool}
}

// Upsert inserts or (if the incoming authority priority is not lower than
// the stored one) updates the datapoint for (loanId, key).
func (r *PostgresDatapointRepo) Upsert(ctx context.Context, dp *domain.Datapoint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO datapoints
			(id, tenant_id, loan_id, key, value, normalized_value, confidence,
			 ingest_source, evidence_doc_id, authority_priority, lineage_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (loan_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			normalized_value = EXCLUDED.normalized_value,
			confidence = EXCLUDED.confidence,
			ingest_source = EXCLUDED.ingest_source,
			evidence_doc_id = EXCLUDED.evidence_doc_id,
			authority_priority = EXCLUDED.authority_priority,
			lineage_id = EXCLUDED.lineage_id,
			updated_at = EXCLUDED.updated_at
		WHERE datapoints.authority_priority <= EXCLUDED.authority_priority
	`, dp.ID, dp.TenantID, dp.LoanID, dp.Key, dp.Value, dp.NormalizedValue, dp.Confidence,
		dp.IngestSource, dp.EvidenceDocID, dp.AuthorityPriority, dp.LineageID, dp.UpdatedAt)
	return err
}

// Get returns the current datapoint for (loanID, key), or (nil, nil) if
// none has been recorded yet.
func (r *PostgresDatapointRepo) Get(ctx context.Context, loanID uuid.UUID, key string) (*domain.Datapoint, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, loan_id, key, value, normalized_value, confidence,
		       ingest_source, evidence_doc_id, authority_priority, lineage_id, updated_at
		FROM datapoints WHERE loan_id = $1 AND key = $2
	`, loanID, key)

	var dp domain.Datapoint
	err := row.Scan(&dp.ID, &dp.TenantID, &dp.LoanID, &dp.Key, &dp.Value, &dp.NormalizedValue, &dp.Confidence,
		&dp.IngestSource, &dp.EvidenceDocID, &dp.AuthorityPriority, &dp.LineageID, &dp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &dp, err
}

// PostgresDefectRepo persists validation Defects.
type PostgresDefectRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresDefectRepo creates a PostgresDefectRepo backed by pool.
func NewPostgresDefectRepo(pool *pgxpool.Pool) *PostgresDefectRepo {
	return &PostgresDefectRepo{pool: pool}
}

// Create inserts d.
func (r *PostgresDefectRepo) Create(ctx context.Context, d *domain.Defect) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO defects (id, tenant_id, loan_id, key, severity, message, candidate_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, d.ID, d.TenantID, d.LoanID, d.Key, d.Severity, d.Message, d.CandidateRef, d.CreatedAt)
	return err
}
