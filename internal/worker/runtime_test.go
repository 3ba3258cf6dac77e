package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/clock"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
)

type fakeHandler struct {
	name string
	fn   func(ctx context.Context, item *domain.WorkItem, executionID string) Result
	n    int
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) Execute(ctx context.Context, item *domain.WorkItem, executionID string) Result {
	h.n++
	return h.fn(ctx, item, executionID)
}

func newItem() *domain.WorkItem {
	return &domain.WorkItem{
		ID:            "item-1",
		TenantID:      "tenant-1",
		Type:          "intake",
		Payload:       []byte(`{"k":"v"}`),
		CorrelationID: "corr-1",
		MaxAttempts:   3,
		Status:        domain.WorkQueued,
	}
}

func TestRuntime_SuccessCachesResultForIdempotentReplay(t *testing.T) {
	h := &fakeHandler{name: "intake", fn: func(ctx context.Context, item *domain.WorkItem, executionID string) Result {
		return Result{Success: true, Output: []byte("ok")}
	}}
	r := New(h, DefaultConfig(), NewMemoryDLQ(), audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())

	item := newItem()
	res := r.Process(context.Background(), item)
	require.True(t, res.Success)
	require.Equal(t, domain.WorkCompleted, item.Status)
	require.Equal(t, 1, h.n)

	// Replay with a fresh item sharing the same natural key: handler must
	// not be invoked again.
	replay := newItem()
	res2 := r.Process(context.Background(), replay)
	require.True(t, res2.Success)
	require.Equal(t, []byte("ok"), res2.Output)
	require.Equal(t, 1, h.n, "handler should not re-run on idempotency cache hit")
}

func TestRuntime_TimeoutSchedulesRetry(t *testing.T) {
	h := &fakeHandler{name: "slow", fn: func(ctx context.Context, item *domain.WorkItem, executionID string) Result {
		<-ctx.Done()
		return Result{}
	}}
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.IdempotencyEnabled = false

	r := New(h, cfg, NewMemoryDLQ(), audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())
	item := newItem()
	res := r.Process(context.Background(), item)

	require.False(t, res.Success)
	require.Equal(t, domain.WorkRetryScheduled, item.Status)
	require.NotNil(t, item.NextRetryAt)
	require.Len(t, item.Errors, 1)
}

func TestRuntime_ExhaustedRetriesGoToDLQ(t *testing.T) {
	h := &fakeHandler{name: "flaky", fn: func(ctx context.Context, item *domain.WorkItem, executionID string) Result {
		return Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(context.DeadlineExceeded)}
	}}
	cfg := DefaultConfig()
	cfg.IdempotencyEnabled = false
	dlq := NewMemoryDLQ()

	r := New(h, cfg, dlq, audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())
	item := newItem()
	item.MaxAttempts = 2

	r.Process(context.Background(), item)
	require.Equal(t, domain.WorkRetryScheduled, item.Status)

	r.Process(context.Background(), item)
	require.Equal(t, domain.WorkDLQ, item.Status)
	require.Len(t, dlq.List(), 1)
}

func TestRuntime_NonRetryableErrorGoesStraightToDLQ(t *testing.T) {
	h := &fakeHandler{name: "bad-input", fn: func(ctx context.Context, item *domain.WorkItem, executionID string) Result {
		return Result{Success: false, ShouldRetry: false, Err: errkind.NewValidation(context.Canceled)}
	}}
	cfg := DefaultConfig()
	cfg.IdempotencyEnabled = false
	dlq := NewMemoryDLQ()

	r := New(h, cfg, dlq, audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())
	item := newItem()

	res := r.Process(context.Background(), item)
	require.False(t, res.Success)
	require.Equal(t, domain.WorkDLQ, item.Status)
	require.Equal(t, 1, h.n)
	require.Len(t, dlq.List(), 1)
}

func TestRetryDelay_ExponentialWithCeiling(t *testing.T) {
	cfg := Config{RetryDelay: time.Second, BackoffMultiplier: 2, MaxRetryDelay: 10 * time.Second}

	require.Equal(t, time.Second, retryDelay(cfg, 1))
	require.Equal(t, 2*time.Second, retryDelay(cfg, 2))
	require.Equal(t, 4*time.Second, retryDelay(cfg, 3))
	require.Equal(t, 8*time.Second, retryDelay(cfg, 4))
	require.Equal(t, 10*time.Second, retryDelay(cfg, 5), "must clamp at MaxRetryDelay")
}

func TestRegistry_Snapshot(t *testing.T) {
	h := &fakeHandler{name: "intake", fn: func(ctx context.Context, item *domain.WorkItem, executionID string) Result {
		return Result{Success: true}
	}}
	r := New(h, DefaultConfig(), NewMemoryDLQ(), audit.NewMemorySink(), clock.RealClock{}, zap.NewNop())
	reg := NewRegistry()
	reg.Register(r)

	snap, _ := reg.Snapshot()
	require.Contains(t, snap, "intake")
	require.True(t, snap["intake"].IsHealthy)

	r.MarkUnhealthy()
	snap, _ = reg.Snapshot()
	require.False(t, snap["intake"].IsHealthy)
}
