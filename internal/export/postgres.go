package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// PostgresDatapointRepo reads a loan's canonical Datapoints from the
// datapoints table populated by the intake pipeline.
type PostgresDatapointRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresDatapointRepo creates a PostgresDatapointRepo backed by pool.
func NewPostgresDatapointRepo(pool *pgxpool.Pool) *PostgresDatapointRepo {
	return &PostgresDatapointRepo{pool: pool}
}

// AllForLoan returns every current datapoint for loanID, keyed by
// canonical field name.
func (r *PostgresDatapointRepo) AllForLoan(ctx context.Context, tenantID string, loanID uuid.UUID) (map[string]domain.Datapoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, loan_id, key, value, normalized_value, confidence,
		       ingest_source, evidence_doc_id, authority_priority, lineage_id, updated_at
		FROM datapoints WHERE tenant_id = $1 AND loan_id = $2
	`, tenantID, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Datapoint)
	for rows.Next() {
		var dp domain.Datapoint
		if err := rows.Scan(&dp.ID, &dp.TenantID, &dp.LoanID, &dp.Key, &dp.Value, &dp.NormalizedValue, &dp.Confidence,
			&dp.IngestSource, &dp.EvidenceDocID, &dp.AuthorityPriority, &dp.LineageID, &dp.UpdatedAt); err != nil {
			return nil, err
		}
		out[dp.Key] = dp
	}
	return out, rows.Err()
}

// PostgresExportRepo persists Export submission rows to the exports table.
type PostgresExportRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresExportRepo creates a PostgresExportRepo backed by pool.
func NewPostgresExportRepo(pool *pgxpool.Pool) *PostgresExportRepo {
	return &PostgresExportRepo{pool: pool}
}

// Create inserts exp in the "queued" (or caller-set) status.
func (r *PostgresExportRepo) Create(ctx context.Context, exp *domain.Export) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO exports (id, tenant_id, loan_id, template, status, mapper_version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, exp.ID, exp.TenantID, exp.LoanID, exp.Template, exp.Status, exp.MapperVersion, exp.CreatedAt)
	return err
}

// MarkSucceeded records the rendered document's location and hash.
func (r *PostgresExportRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, fileURI, sha256 string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE exports SET status = $2, file_uri = $3, file_sha256 = $4, completed_at = $5 WHERE id = $1
	`, id, domain.ExportSucceeded, fileURI, sha256, at)
	return err
}

// MarkFailed records the errors that aborted the export.
func (r *PostgresExportRepo) MarkFailed(ctx context.Context, id uuid.UUID, errs []string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE exports SET status = $2, errors = $3, completed_at = $4 WHERE id = $1
	`, id, domain.ExportFailed, errs, at)
	return err
}

// FileMapperLoader resolves a (template, version) mapper config by reading
// "<dir>/<template>-<version>.yaml" from exports.mapper_config_path. Unlike
// MemoryMapperLoader's fixed in-process map, this lets an operator add a
// new mapper template by dropping a file on disk with no redeploy.
type FileMapperLoader struct {
	dir string
}

// NewFileMapperLoader creates a FileMapperLoader rooted at dir.
func NewFileMapperLoader(dir string) *FileMapperLoader {
	return &FileMapperLoader{dir: dir}
}

// Load reads and parses the mapper config for (template, version).
func (l *FileMapperLoader) Load(template domain.ExportTemplate, version string) (*MapperConfig, error) {
	path := filepath.Join(l.dir, string(template)+"-"+version+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadMapperConfig(data)
}
