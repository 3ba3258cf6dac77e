package domain

import "time"

// WorkStatus is the lifecycle state of a WorkItem (§3, §4.1).
type WorkStatus string

const (
	WorkQueued         WorkStatus = "queued"
	WorkInFlight       WorkStatus = "in-flight"
	WorkCompleted      WorkStatus = "completed"
	WorkRetryScheduled WorkStatus = "retry-scheduled"
	WorkDLQ            WorkStatus = "dlq"
)

// WorkItem is a unit of asynchronous work processed by the self-healing
// worker runtime (§4.1).
type WorkItem struct {
	ID             string     `db:"id"`
	TenantID       string     `db:"tenant_id"`
	Type           string     `db:"type"`
	Payload        []byte     `db:"payload"` // JSON-encoded payload; see worker.Runtime
	CorrelationID  string     `db:"correlation_id"`
	Attempt        int        `db:"attempt"`
	MaxAttempts    int        `db:"max_attempts"`
	Status         WorkStatus `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	LastAttemptAt  *time.Time `db:"last_attempt_at"`
	NextRetryAt    *time.Time `db:"next_retry_at"`
	Errors         []string   `db:"errors"`
}

// NotificationChannel is the delivery channel for a notification worker
// job (§4.7 "consumers (notifications, task-assigned, email-requested, …)").
type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelSMS     NotificationChannel = "sms"
	ChannelWebhook NotificationChannel = "webhook"
)

// NotificationRecord is a durable delivery-idempotency and audit record for
// one notification worker job, keyed on MessageID so replays of the same
// outbox message never double-send (§4.7 "idempotent on messageId").
type NotificationRecord struct {
	ID          string              `db:"id"`
	TenantID    string              `db:"tenant_id"`
	MessageID   string              `db:"message_id"`
	Channel     NotificationChannel `db:"channel"`
	Recipient   string              `db:"recipient"`
	Success     bool                `db:"success"`
	ErrorMessage string             `db:"error_message"`
	DeliveredAt time.Time           `db:"delivered_at"`
}

// OutboxMessage is written in the same DB transaction as the domain change
// it announces (§4.7). PublishedAt is set exactly once, by the dispatcher,
// and never unset again.
type OutboxMessage struct {
	ID            string     `db:"id"`
	TenantID      string     `db:"tenant_id"`
	AggregateType string     `db:"aggregate_type"`
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"`
	Payload       []byte     `db:"payload"`
	CreatedAt     time.Time  `db:"created_at"`
	PublishedAt   *time.Time `db:"published_at"`
	Attempts      int        `db:"attempts"`
}
