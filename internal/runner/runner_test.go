package runner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/clock"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

type fakeHandler struct {
	fn func(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result
}

func (h *fakeHandler) Name() string { return "intake" }

func (h *fakeHandler) Execute(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result {
	return h.fn(ctx, item, executionID)
}

func newRuntime(t *testing.T, fn func(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result) *worker.Runtime {
	t.Helper()
	cfg := worker.DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryDelay = 10 * time.Millisecond
	return worker.New(&fakeHandler{fn: fn}, cfg, worker.NewMemoryDLQ(), audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())
}

func publishItem(t *testing.T, broker storage.QueueBroker, topic string, item *domain.WorkItem) {
	t.Helper()
	payload, err := json.Marshal(item)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(context.Background(), topic, payload))
}

func TestConsumer_ProcessesSuccessfulItem(t *testing.T) {
	broker := storage.NewMemoryBroker()
	runtime := newRuntime(t, func(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result {
		return worker.Result{Success: true, Output: []byte("done")}
	})
	c := &Consumer{Topic: "intake", Broker: broker, Runtime: runtime, Logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	publishItem(t, broker, "intake", &domain.WorkItem{
		ID: "item-1", TenantID: "tenant-1", Type: "intake",
		Payload: []byte(`{"k":"v"}`), CorrelationID: "corr-1", Status: domain.WorkQueued,
	})

	cancel()
	<-done
}

func TestConsumer_RepublishesRetryScheduledItem(t *testing.T) {
	broker := storage.NewMemoryBroker()
	attempts := 0
	runtime := newRuntime(t, func(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result {
		attempts++
		if attempts == 1 {
			return worker.Result{Success: false, Err: context.DeadlineExceeded, ShouldRetry: true}
		}
		return worker.Result{Success: true, Output: []byte("done")}
	})
	c := &Consumer{Topic: "intake", Broker: broker, Runtime: runtime, Logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgs, err := broker.Subscribe(ctx, "intake")
	require.NoError(t, err)

	go func() { _ = c.Run(ctx) }()
	time.Sleep(50 * time.Millisecond) // let the consumer subscribe before publishing

	publishItem(t, broker, "intake", &domain.WorkItem{
		ID: "item-2", TenantID: "tenant-1", Type: "intake",
		Payload: []byte(`{"k":"v"}`), CorrelationID: "corr-2", Status: domain.WorkQueued,
	})
	<-msgs // this subscription also receives the original publish; the republish follows it

	select {
	case raw := <-msgs:
		var republished domain.WorkItem
		require.NoError(t, json.Unmarshal(raw, &republished))
		require.Equal(t, "item-2", republished.ID)
		require.Equal(t, domain.WorkRetryScheduled, republished.Status)
	case <-time.After(900 * time.Millisecond):
		t.Fatal("expected the retry-scheduled item to be republished onto its own topic")
	}
}

func TestBrokerRequeuer_EnqueuePublishesOntoItemType(t *testing.T) {
	broker := storage.NewMemoryBroker()
	msgs, err := broker.Subscribe(context.Background(), "notify")
	require.NoError(t, err)

	r := &BrokerRequeuer{Broker: broker}
	item := &domain.WorkItem{ID: "item-3", Type: "notify", TenantID: "tenant-1"}
	require.NoError(t, r.Enqueue(context.Background(), item))

	select {
	case raw := <-msgs:
		var got domain.WorkItem
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, "item-3", got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected requeued item on the topic named after its Type")
	}
}

func TestMemoryDLQAdapter_ListAndReplay(t *testing.T) {
	dlq := worker.NewMemoryDLQ()
	require.NoError(t, dlq.Enqueue(context.Background(), &domain.WorkItem{ID: "item-4"}, context.DeadlineExceeded))

	a := &MemoryDLQAdapter{DLQ: dlq}
	items, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	replayed, err := a.Replay(context.Background(), "item-4", true)
	require.NoError(t, err)
	require.Equal(t, "item-4", replayed.ID)

	_, err = a.Replay(context.Background(), "item-4", true)
	require.Error(t, err)
}
