package notify

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// MemoryNotificationRepo is an in-memory NotificationRepo for tests.
type MemoryNotificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.NotificationRecord
}

// NewMemoryNotificationRepo creates an empty MemoryNotificationRepo.
func NewMemoryNotificationRepo() *MemoryNotificationRepo {
	return &MemoryNotificationRepo{records: make(map[string]*domain.NotificationRecord)}
}

func key(tenantID, messageID string) string { return tenantID + "/" + messageID }

func (r *MemoryNotificationRepo) FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[key(tenantID, messageID)], nil
}

func (r *MemoryNotificationRepo) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key(rec.TenantID, rec.MessageID)] = rec
	return nil
}

// PostgresNotificationRepo persists notification delivery records to the
// notification_records table, unique on (tenant_id, message_id).
type PostgresNotificationRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresNotificationRepo creates a PostgresNotificationRepo.
func NewPostgresNotificationRepo(pool *pgxpool.Pool) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{pool: pool}
}

func (r *PostgresNotificationRepo) FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.NotificationRecord, error) {
	var rec domain.NotificationRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, message_id, channel, recipient, success, error_message, delivered_at
		FROM notification_records WHERE tenant_id = $1 AND message_id = $2
	`, tenantID, messageID).Scan(&rec.ID, &rec.TenantID, &rec.MessageID, &rec.Channel, &rec.Recipient, &rec.Success, &rec.ErrorMessage, &rec.DeliveredAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresNotificationRepo) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_records (id, tenant_id, message_id, channel, recipient, success, error_message, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, message_id) DO NOTHING
	`, rec.ID, rec.TenantID, rec.MessageID, rec.Channel, rec.Recipient, rec.Success, rec.ErrorMessage, rec.DeliveredAt)
	return err
}
