package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// PostgresSink persists audit events to PostgreSQL, modeled on
// trustledger.PostgresLedger's pool-backed writer.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSink creates a PostgresSink backed by the given pool.
func NewPostgresSink(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{pool: pool, logger: logger}
}

// Emit implements Sink.
func (s *PostgresSink) Emit(ctx context.Context, tenantID, eventType, actorType, actorID, resourceURN string, payload any) (*domain.AuditEvent, error) {
	e := newEvent(tenantID, eventType, actorType, actorID, resourceURN, payload)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, tenant_id, event_type, actor_type, actor_id, resource_urn, payload, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.TenantID, e.EventType, e.ActorType, e.ActorID, e.ResourceURN, e.Payload, e.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit event: %w", err)
	}

	s.logger.Debug("audit event emitted",
		zap.String("event_type", e.EventType),
		zap.String("resource_urn", e.ResourceURN),
	)
	return e, nil
}

// ListByResource implements Sink.
func (s *PostgresSink) ListByResource(ctx context.Context, tenantID, resourceURN string, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, event_type, actor_type, actor_id, resource_urn, payload, timestamp
		 FROM audit_events
		 WHERE tenant_id = $1 AND resource_urn = $2
		 ORDER BY timestamp DESC LIMIT $3`,
		tenantID, resourceURN, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByType implements Sink.
func (s *PostgresSink) ListByType(ctx context.Context, tenantID, eventType string, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, event_type, actor_type, actor_id, resource_urn, payload, timestamp
		 FROM audit_events
		 WHERE tenant_id = $1 AND event_type = $2 AND timestamp >= $3
		 ORDER BY timestamp DESC LIMIT $4`,
		tenantID, eventType, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*domain.AuditEvent, error) {
	var out []*domain.AuditEvent
	for rows.Next() {
		e := &domain.AuditEvent{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EventType, &e.ActorType, &e.ActorID, &e.ResourceURN, &e.Payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
