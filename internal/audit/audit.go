// Package audit implements the append-only Audit Sink (C3): every other
// component in this repository writes events here, keyed by tenant and
// resource URN (spec.md §3 AuditEvent, §2 "C3 is written to everywhere").
//
// Two implementations of Sink are provided, mirroring the registry's
// trustledger package split:
//   - MemorySink: in-process, for tests.
//   - PostgresSink: durable, for production use.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// Sink appends and queries audit events.
type Sink interface {
	Emit(ctx context.Context, tenantID, eventType, actorType, actorID, resourceURN string, payload any) (*domain.AuditEvent, error)
	ListByResource(ctx context.Context, tenantID, resourceURN string, limit int) ([]*domain.AuditEvent, error)
	ListByType(ctx context.Context, tenantID, eventType string, since time.Time, limit int) ([]*domain.AuditEvent, error)
}

// Well-known event type namespaces, dotted per spec.md §3 example
// ("AI_PIPELINE.AUTHORITY_DECISION").
const (
	EventWorkStarted   = "WORKER.WORK_STARTED"
	EventWorkCached    = "WORKER.WORK_CACHED"
	EventWorkCompleted = "WORKER.WORK_COMPLETED"
	EventWorkFailed    = "WORKER.WORK_FAILED"
	EventWorkError     = "WORKER.WORK_ERROR"
	EventWorkDLQ       = "WORKER.WORK_DLQ"

	EventAuthorityDecision = "AI_PIPELINE.AUTHORITY_DECISION"
	EventParticipationOversubscribed = "AI_PIPELINE.PARTICIPATION_OVERSUBSCRIBED"
	EventLineageIntegrityFailure = "AI_PIPELINE.LINEAGE_INTEGRITY_FAILURE"

	EventOutboxPublished = "OUTBOX.MESSAGE_PUBLISHED"
	EventOutboxDLQ       = "OUTBOX.MESSAGE_DLQ"

	EventRemittanceRunCompleted = "REMITTANCE.RUN_COMPLETED"
	EventRemittanceRunSkipped   = "REMITTANCE.RUN_SKIPPED"
	EventPayoutWebhookFailed    = "REMITTANCE.WEBHOOK_FAILED"

	EventExportSucceeded = "EXPORT.SUCCEEDED"
	EventExportFailed    = "EXPORT.FAILED"

	EventVendorCallCompleted = "VENDOR.CALL_COMPLETED"
	EventVendorDegraded      = "VENDOR.HEALTH_DEGRADED"
)

func marshalPayload(payload any) []byte {
	b, err := json.Marshal(payload)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return b
}

func newEvent(tenantID, eventType, actorType, actorID, resourceURN string, payload any) *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:          uuid.New(),
		TenantID:    tenantID,
		EventType:   eventType,
		ActorType:   actorType,
		ActorID:     actorID,
		ResourceURN: resourceURN,
		Payload:     marshalPayload(payload),
		Timestamp:   time.Now().UTC(),
	}
}
