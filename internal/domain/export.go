package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExportStatus is the lifecycle state of an Export (§4.9).
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportRunning   ExportStatus = "running"
	ExportSucceeded ExportStatus = "succeeded"
	ExportFailed    ExportStatus = "failed"
)

// ExportTemplate names a supported export mapper.
type ExportTemplate string

const (
	TemplateFannie  ExportTemplate = "fannie"
	TemplateFreddie ExportTemplate = "freddie"
	TemplateCustom  ExportTemplate = "custom"
)

// Export is a (tenantId, loanId, template) submission (§3).
type Export struct {
	ID            uuid.UUID      `db:"id"`
	TenantID      string         `db:"tenant_id"`
	LoanID        uuid.UUID      `db:"loan_id"`
	Template      ExportTemplate `db:"template"`
	Status        ExportStatus   `db:"status"`
	FileURI       string         `db:"file_uri"`
	FileSHA256    string         `db:"file_sha256"`
	Errors        []string       `db:"errors"`
	MapperVersion string         `db:"mapper_version"`
	CreatedAt     time.Time      `db:"created_at"`
	CompletedAt   *time.Time     `db:"completed_at"`
}

// VendorCache holds a cached vendor response keyed by (tenantId, vendor, key).
type VendorCache struct {
	TenantID  string    `db:"tenant_id"`
	Vendor    string    `db:"vendor"`
	Key       string    `db:"key"`
	Payload   []byte    `db:"payload"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// VendorAudit is an append-only record of a vendor HTTP call (§4.10).
type VendorAudit struct {
	ID        uuid.UUID `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Vendor    string    `db:"vendor"`
	Endpoint  string    `db:"endpoint"`
	Status    int       `db:"status"`
	Request   []byte    `db:"request"`
	Response  []byte    `db:"response"`
	LatencyMs int64     `db:"latency_ms"`
	CreatedAt time.Time `db:"created_at"`
}

// AuditEvent is the global append-only log entry (§3, C3).
type AuditEvent struct {
	ID          uuid.UUID `db:"id"`
	TenantID    string    `db:"tenant_id"`
	EventType   string    `db:"event_type"`
	ActorType   string    `db:"actor_type"`
	ActorID     string    `db:"actor_id"`
	ResourceURN string    `db:"resource_urn"`
	Payload     []byte    `db:"payload"`
	Timestamp   time.Time `db:"timestamp"`
	RequestCtx  []byte    `db:"request_ctx"`
}
