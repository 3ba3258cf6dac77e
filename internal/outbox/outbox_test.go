package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

type fakeBroker struct {
	failTopic string
	published []string
}

func (b *fakeBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == b.failTopic {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, topic)
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	return nil, nil
}

type fakeDLQ struct {
	enqueued []*domain.OutboxMessage
}

func (d *fakeDLQ) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	d.enqueued = append(d.enqueued, msg)
	return nil
}

func newMessage(id, eventType string, at time.Time) *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID: id, TenantID: "tenant-1", AggregateType: "loan", AggregateID: "loan-1",
		EventType: eventType, Payload: []byte(`{"ok":true}`), CreatedAt: at,
	}
}

func TestDispatcher_RunOnce_PublishesInInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Insert(newMessage("msg-2", "loan.updated", time.Unix(200, 0)))
	store.Insert(newMessage("msg-1", "loan.created", time.Unix(100, 0)))

	broker := &fakeBroker{}
	d := NewDispatcher(store, broker, &fakeDLQ{}, audit.NewMemorySink(), zap.NewNop())

	n, err := d.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"loan.created", "loan.updated"}, broker.published)
}

func TestDispatcher_RunOnce_RespectsBatchLimit(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		store.Insert(newMessage(string(rune('a'+i)), "loan.updated", time.Unix(int64(i), 0)))
	}
	broker := &fakeBroker{}
	d := NewDispatcher(store, broker, &fakeDLQ{}, nil, zap.NewNop())

	n, err := d.RunOnce(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDispatcher_RunOnce_FailedPublishIncrementsAttemptsAndStaysUnpublished(t *testing.T) {
	store := NewMemoryStore()
	store.Insert(newMessage("msg-1", "loan.created", time.Unix(100, 0)))
	broker := &fakeBroker{failTopic: "loan.created"}
	d := NewDispatcher(store, broker, &fakeDLQ{}, nil, zap.NewNop())

	n, err := d.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 1, store.attempts["msg-1"])

	again, err := store.ClaimBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
}

func TestDispatcher_RunOnce_DeadThresholdMovesToDLQ(t *testing.T) {
	store := NewMemoryStore()
	store.Insert(newMessage("msg-1", "loan.created", time.Unix(100, 0)))
	broker := &fakeBroker{failTopic: "loan.created"}
	dlq := &fakeDLQ{}
	d := NewDispatcher(store, broker, dlq, nil, zap.NewNop())

	for i := 0; i < DeadThreshold; i++ {
		_, err := d.RunOnce(context.Background(), 10)
		require.NoError(t, err)
	}

	require.Len(t, dlq.enqueued, 1)
	require.Equal(t, "msg-1", dlq.enqueued[0].ID)
}
