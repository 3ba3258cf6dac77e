// Package worker implements the Self-Healing Worker Runtime (C8): every
// asynchronous unit of work in this system implements Handler and is run
// through Runtime, which supplies idempotency, timeout, retry/backoff, DLQ,
// audit, and health reporting around the call (spec.md §4.1).
//
// Grounded on the registry's internal/health.HealthChecker (periodic probe
// loop with bounded concurrency and a failure-count state machine) and
// internal/resolver's cache (TTL/bounded in-memory cache guarded by a
// mutex) — generalized here from "probe an agent endpoint" /
// "cache a DNS-style resolution" to "run a unit of work with full
// self-healing semantics".
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/clock"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
)

// Result is the outcome of a single ExecuteWork call (spec.md §4.1
// "WorkResult{success, result?, error?, shouldRetry}").
type Result struct {
	Success     bool
	Output      []byte
	Err         error
	ShouldRetry bool
}

// Handler is implemented by every asynchronous unit of work. There is no
// base class — spec.md §9 calls for "an interface... and a runtime that
// composes retry/timeout/DLQ/idempotency around any implementation".
type Handler interface {
	// Name identifies the worker type, used in the idempotency key and in
	// health reporting.
	Name() string
	// Execute performs the unit of work. It must itself be safe to call
	// more than once for the same WorkItem (idempotent at the storage
	// layer via natural-key upserts) since the runtime's own idempotency
	// cache is per-process, not durable (§4.1 concurrency note).
	Execute(ctx context.Context, item *domain.WorkItem, executionID string) Result
}

// DLQSink receives work items that exhausted retries or hit a
// non-retryable error (§4.1 "durable; operator-replayable").
type DLQSink interface {
	Enqueue(ctx context.Context, item *domain.WorkItem, lastErr error) error
}

// Config is the §6 "Worker runtime" configuration block.
type Config struct {
	MaxRetries         int
	RetryDelay         time.Duration
	BackoffMultiplier  float64
	MaxRetryDelay      time.Duration
	Timeout            time.Duration
	DLQEnabled         bool
	IdempotencyEnabled bool
	CacheCapacity      int
}

// DefaultConfig returns the §6 default worker runtime configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		RetryDelay:         time.Second,
		BackoffMultiplier:  2,
		MaxRetryDelay:      30 * time.Second,
		Timeout:            60 * time.Second,
		DLQEnabled:         true,
		IdempotencyEnabled: true,
		CacheCapacity:      1000,
	}
}

// Runtime wraps one Handler with idempotency/retry/timeout/DLQ/audit/health.
type Runtime struct {
	handler   Handler
	cfg       Config
	cache     *idemCache
	dlq       DLQSink
	sink      audit.Sink
	clock     clock.Clock
	logger    *zap.Logger
	unhealthy bool
}

// New creates a Runtime for the given Handler.
func New(handler Handler, cfg Config, dlq DLQSink, sink audit.Sink, clk clock.Clock, logger *zap.Logger) *Runtime {
	return &Runtime{
		handler: handler,
		cfg:     cfg,
		cache:   newIdemCache(cfg.CacheCapacity),
		dlq:     dlq,
		sink:    sink,
		clock:   clk,
		logger:  logger,
	}
}

// idempotencyKey computes H(workerName, type, payload, correlationId) per
// §4.1.
func idempotencyKey(workerName string, item *domain.WorkItem) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", workerName, item.Type, item.Payload, item.CorrelationID)
	return hex.EncodeToString(h.Sum(nil))
}

// Process runs one WorkItem through the full runtime pipeline. It returns
// the terminal Result for this attempt: a caller (the scheduler pulling
// items off a queue) uses item.Status (mutated in place) to decide whether
// to requeue at NextRetryAt, or drop because it reached DLQ.
func (r *Runtime) Process(ctx context.Context, item *domain.WorkItem) Result {
	executionID := fmt.Sprintf("exec-%s-%d", item.ID, item.Attempt)
	resourceURN := fmt.Sprintf("urn:worker:%s:%s", r.handler.Name(), item.ID)

	r.emit(ctx, item.TenantID, audit.EventWorkStarted, resourceURN, map[string]any{
		"execution_id": executionID,
		"attempt":      item.Attempt,
	})

	metrics.RecordWorkerAttempt(r.handler.Name())

	key := idempotencyKey(r.handler.Name(), item)
	if r.cfg.IdempotencyEnabled {
		if cached, ok := r.cache.get(key); ok {
			r.emit(ctx, item.TenantID, audit.EventWorkCached, resourceURN, map[string]any{"execution_id": executionID})
			item.Status = domain.WorkCompleted
			return cached
		}
	}

	start := r.clock.Now()
	result := r.runWithTimeout(ctx, item, executionID)
	duration := r.clock.Now().Sub(start)

	item.Attempt++
	now := r.clock.Now()
	item.LastAttemptAt = &now

	if result.Success {
		if r.cfg.IdempotencyEnabled {
			r.cache.put(key, result)
		}
		item.Status = domain.WorkCompleted
		metrics.RecordWorkerSuccess(r.handler.Name(), duration.Seconds())
		r.emit(ctx, item.TenantID, audit.EventWorkCompleted, resourceURN, map[string]any{
			"execution_id": executionID,
			"duration_ms":  duration.Milliseconds(),
		})
		return result
	}

	if result.Err != nil {
		item.Errors = append(item.Errors, result.Err.Error())
	}

	retryable := result.ShouldRetry && errkind.Retryable(result.Err) && item.Attempt < item.MaxAttempts
	if retryable {
		delay := retryDelay(r.cfg, item.Attempt)
		next := r.clock.Now().Add(delay)
		item.NextRetryAt = &next
		item.Status = domain.WorkRetryScheduled
		metrics.RecordWorkerRetry(r.handler.Name())
		r.emit(ctx, item.TenantID, audit.EventWorkFailed, resourceURN, map[string]any{
			"execution_id": executionID,
			"error":        errString(result.Err),
			"next_retry_at": next,
			"attempt":      item.Attempt,
		})
		return result
	}

	// Terminal failure: either non-retryable, or retries exhausted.
	item.Status = domain.WorkDLQ
	r.emit(ctx, item.TenantID, audit.EventWorkError, resourceURN, map[string]any{
		"execution_id": executionID,
		"error":        errString(result.Err),
	})

	if r.cfg.DLQEnabled && r.dlq != nil {
		if err := r.dlq.Enqueue(ctx, item, result.Err); err != nil {
			r.logger.Error("worker: DLQ enqueue failed", zap.Error(err), zap.String("work_item_id", item.ID))
		} else {
			metrics.RecordWorkerDLQ(r.handler.Name())
			r.emit(ctx, item.TenantID, audit.EventWorkDLQ, resourceURN, map[string]any{"execution_id": executionID})
		}
	}
	return result
}

// runWithTimeout races the handler against cfg.Timeout, per §4.1.
func (r *Runtime) runWithTimeout(ctx context.Context, item *domain.WorkItem, executionID string) Result {
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		return r.handler.Execute(ctx, item, executionID)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- r.handler.Execute(ctx, item, executionID)
	}()

	select {
	case res := <-resultCh:
		return res
	case <-ctx.Done():
		return Result{
			Success:     false,
			ShouldRetry: true,
			Err:         errkind.NewTransient(fmt.Errorf("work timed out after %s", timeout)),
		}
	}
}

// retryDelay computes delay(n) = min(baseDelay × multiplier^(n-1), maxDelay)
// using cenkalti/backoff's ExponentialBackOff stepped to attempt n, with
// randomization disabled so the result is exactly the formula in §4.1.
func retryDelay(cfg Config, attempt int) time.Duration {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.RetryDelay,
		RandomizationFactor: 0,
		Multiplier:          cfg.BackoffMultiplier,
		MaxInterval:         cfg.MaxRetryDelay,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	if d > cfg.MaxRetryDelay {
		d = cfg.MaxRetryDelay
	}
	return d
}

func (r *Runtime) emit(ctx context.Context, tenantID, eventType, resourceURN string, payload any) {
	if r.sink == nil {
		return
	}
	if tenantID == "" {
		tenantID = "system"
	}
	if _, err := r.sink.Emit(ctx, tenantID, eventType, "worker", r.handler.Name(), resourceURN, payload); err != nil {
		r.logger.Warn("worker: audit emit failed", zap.Error(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
