// Package outbox implements the transactional Outbox Dispatcher (C10):
// writers insert an OutboxMessage in the same DB transaction as the domain
// change it announces; a dispatcher polls unpublished rows in insertion
// order, claims a batch via skip-locked semantics, publishes to the
// broker, and marks them published on ack (spec.md §4.7).
//
// Grounded on internal/webhooks.Service.Dispatch/deliver (fan-out +
// per-recipient delivery with attempt tracking), generalized from
// "deliver to N subscriber URLs" to "publish to the broker and track a
// single attempt counter per row".
package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
)

// Store is the outbox persistence boundary.
type Store interface {
	// ClaimBatch returns up to limit unpublished messages, ordered by
	// insertion, claimed so no other dispatcher process will return them
	// concurrently (skip-locked semantics at the Postgres implementation).
	ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) (attempts int, err error)
}

// DeadThreshold is the attempt count at which an unpublished row is
// considered dead and should move to the worker DLQ rather than be
// retried indefinitely (§4.7 "a dead threshold moves to DLQ").
const DeadThreshold = 10

// Dispatcher polls Store for unpublished messages and publishes them to a
// QueueBroker topic named after the message's EventType.
type Dispatcher struct {
	store  Store
	broker storage.QueueBroker
	logger *zap.Logger
	dlq    DLQSink
	audit  audit.Sink
	clock  func() time.Time
}

// DLQSink receives messages that exceeded DeadThreshold attempts.
type DLQSink interface {
	Enqueue(ctx context.Context, msg *domain.OutboxMessage) error
}

// NewDispatcher builds a Dispatcher. sink may be nil, in which case
// dispatch events are not audited (e.g. in lightweight tests).
func NewDispatcher(store Store, broker storage.QueueBroker, dlq DLQSink, sink audit.Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, broker: broker, dlq: dlq, audit: sink, logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// RunOnce claims and publishes up to batchSize messages. It returns the
// number successfully published.
func (d *Dispatcher) RunOnce(ctx context.Context, batchSize int) (int, error) {
	batch, err := d.store.ClaimBatch(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("outbox: claim batch failed: %w", err)
	}

	published := 0
	for _, msg := range batch {
		if err := d.broker.Publish(ctx, msg.EventType, msg.Payload); err != nil {
			attempts, incErr := d.store.IncrementAttempts(ctx, msg.ID)
			if incErr != nil {
				d.logger.Error("outbox: increment attempts failed", zap.Error(incErr), zap.String("outbox_id", msg.ID))
				continue
			}
			if attempts >= DeadThreshold && d.dlq != nil {
				if dlqErr := d.dlq.Enqueue(ctx, msg); dlqErr != nil {
					d.logger.Error("outbox: dlq enqueue failed", zap.Error(dlqErr), zap.String("outbox_id", msg.ID))
				} else if d.audit != nil {
					d.audit.Emit(ctx, msg.TenantID, audit.EventOutboxDLQ, "system", "outbox-dispatcher", msg.AggregateID, map[string]any{
						"outbox_id": msg.ID, "event_type": msg.EventType, "attempts": attempts,
					})
				}
			}
			d.logger.Warn("outbox: publish failed", zap.Error(err), zap.String("outbox_id", msg.ID), zap.Int("attempts", attempts))
			continue
		}

		if err := d.store.MarkPublished(ctx, msg.ID, d.clock()); err != nil {
			d.logger.Error("outbox: mark published failed", zap.Error(err), zap.String("outbox_id", msg.ID))
			continue
		}
		if d.audit != nil {
			d.audit.Emit(ctx, msg.TenantID, audit.EventOutboxPublished, "system", "outbox-dispatcher", msg.AggregateID, map[string]any{
				"outbox_id": msg.ID, "event_type": msg.EventType,
			})
		}
		published++
	}
	return published, nil
}

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]*domain.OutboxMessage
	attempts map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]*domain.OutboxMessage), attempts: make(map[string]int)}
}

// Insert adds msg to the store; callers are expected to call this inside
// the same in-memory "transaction" as the domain change it announces.
func (s *MemoryStore) Insert(msg *domain.OutboxMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
}

func (s *MemoryStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unpublished []*domain.OutboxMessage
	for _, m := range s.messages {
		if m.PublishedAt == nil {
			unpublished = append(unpublished, m)
		}
	}
	sort.Slice(unpublished, func(i, j int) bool { return unpublished[i].CreatedAt.Before(unpublished[j].CreatedAt) })
	if len(unpublished) > limit {
		unpublished = unpublished[:limit]
	}
	return unpublished, nil
}

func (s *MemoryStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		t := at
		m.PublishedAt = &t
	}
	return nil
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id]++
	if m, ok := s.messages[id]; ok {
		m.Attempts = s.attempts[id]
	}
	return s.attempts[id], nil
}

// PostgresStore persists outbox messages to the outbox_messages table,
// using `FOR UPDATE SKIP LOCKED` to claim a batch (§4.7, §5 "Outbox
// dispatcher uses skip-locked batch claims").
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, aggregate_type, aggregate_id, event_type, payload, created_at, attempts
		FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.TenantID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload, &m.CreatedAt, &m.Attempts); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox_messages SET published_at = $1 WHERE id = $2`, at, id)
	return err
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE outbox_messages SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts
	`, id).Scan(&attempts)
	return attempts, err
}
