package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// NewMessage builds an OutboxMessage ready for insertion in the same
// transaction as the domain change it announces. body is marshaled to
// JSON; callers needing a pre-encoded payload should build the
// OutboxMessage literal directly instead.
func NewMessage(tenantID, aggregateType, aggregateID, eventType string, body any, at time.Time) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &domain.OutboxMessage{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}, nil
}
