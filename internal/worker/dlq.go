package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// MemoryDLQ is an in-memory DLQSink used in tests and for single-process
// demo runs. Items are replayable via Replay/List, mirroring the operator
// "DLQ inspect/replay" surface (SPEC_FULL.md §C.1) without a database.
type MemoryDLQ struct {
	mu    sync.Mutex
	items []*domain.WorkItem
}

// NewMemoryDLQ creates an empty MemoryDLQ.
func NewMemoryDLQ() *MemoryDLQ {
	return &MemoryDLQ{}
}

// Enqueue records item as dead-lettered. lastErr is already folded into
// item.Errors by Runtime.Process; it is accepted here for parity with the
// Postgres-backed sink, which persists it as its own column.
func (d *MemoryDLQ) Enqueue(ctx context.Context, item *domain.WorkItem, lastErr error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, item)
	return nil
}

// List returns a snapshot of everything currently dead-lettered.
func (d *MemoryDLQ) List() []*domain.WorkItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*domain.WorkItem, len(d.items))
	copy(out, d.items)
	return out
}

// Replay pops the item with the given ID out of the DLQ and, if
// resetAttempts is true (the caller's choice; the ops replay handler takes
// it from the reset_attempts query parameter),
// resets its attempt counter and clears its recorded errors before
// returning it to the caller for requeue.
func (d *MemoryDLQ) Replay(id string, resetAttempts bool) (*domain.WorkItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, it := range d.items {
		if it.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			if resetAttempts {
				it.Attempt = 0
				it.Errors = nil
				it.NextRetryAt = nil
			}
			it.Status = domain.WorkQueued
			return it, true
		}
	}
	return nil, false
}

// PostgresDLQ persists dead-lettered work items to the dead_letters table
// for operator inspection and replay across process restarts.
type PostgresDLQ struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDLQ creates a PostgresDLQ backed by pool.
func NewPostgresDLQ(pool *pgxpool.Pool, logger *zap.Logger) *PostgresDLQ {
	return &PostgresDLQ{pool: pool, logger: logger}
}

// Enqueue upserts item into dead_letters keyed by work item ID, so a retried
// Enqueue for the same item (e.g. after a crash mid-write) does not create a
// duplicate row.
func (d *PostgresDLQ) Enqueue(ctx context.Context, item *domain.WorkItem, lastErr error) error {
	lastErrText := ""
	if lastErr != nil {
		lastErrText = lastErr.Error()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO dead_letters (work_item_id, tenant_id, type, payload, correlation_id, attempt, last_error, dead_lettered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (work_item_id) DO UPDATE SET
			attempt = EXCLUDED.attempt,
			last_error = EXCLUDED.last_error,
			dead_lettered_at = EXCLUDED.dead_lettered_at
	`, item.ID, item.TenantID, item.Type, item.Payload, item.CorrelationID, item.Attempt, lastErrText, time.Now().UTC())
	return err
}

// List returns every work item currently dead-lettered, most recent first,
// for the operator console's DLQ inspection surface.
func (d *PostgresDLQ) List(ctx context.Context) ([]*domain.WorkItem, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT work_item_id, tenant_id, type, payload, correlation_id, attempt, last_error, dead_lettered_at
		FROM dead_letters ORDER BY dead_lettered_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.WorkItem
	for rows.Next() {
		var item domain.WorkItem
		var lastErrText string
		var deadLetteredAt time.Time
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Type, &item.Payload, &item.CorrelationID, &item.Attempt, &lastErrText, &deadLetteredAt); err != nil {
			return nil, err
		}
		if lastErrText != "" {
			item.Errors = []string{lastErrText}
		}
		item.Status = domain.WorkDLQ
		item.LastAttemptAt = &deadLetteredAt
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Replay deletes the dead_letters row and returns the reconstructed
// WorkItem for the caller to requeue.
func (d *PostgresDLQ) Replay(ctx context.Context, workItemID string, resetAttempts bool) (*domain.WorkItem, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT work_item_id, tenant_id, type, payload, correlation_id, attempt, last_error
		FROM dead_letters WHERE work_item_id = $1
	`, workItemID)

	var item domain.WorkItem
	var lastErrText string
	if err := row.Scan(&item.ID, &item.TenantID, &item.Type, &item.Payload, &item.CorrelationID, &item.Attempt, &lastErrText); err != nil {
		return nil, err
	}

	if resetAttempts {
		item.Attempt = 0
		item.Errors = nil
	} else if lastErrText != "" {
		item.Errors = []string{lastErrText}
	}
	item.Status = domain.WorkQueued

	if _, err := d.pool.Exec(ctx, `DELETE FROM dead_letters WHERE work_item_id = $1`, workItemID); err != nil {
		d.logger.Warn("worker: dlq replay cleanup failed", zap.Error(err), zap.String("work_item_id", workItemID))
	}
	return &item, nil
}
