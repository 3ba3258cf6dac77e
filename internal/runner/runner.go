// Package runner bridges the QueueBroker (C9) to the Self-Healing Worker
// Runtime (C8): it subscribes to the topic named after a Handler's worker
// type, unmarshals each message as a domain.WorkItem, and drives it through
// a worker.Runtime. A retry-scheduled item is republished onto the same
// topic once its NextRetryAt has elapsed, so retries flow back through the
// broker rather than sitting in an in-process timer that a process
// restart would lose.
//
// Grounded on the outbox Dispatcher's own poll loop (RunOnce on a fixed
// ticker, §4.7), generalized from "claim a DB batch" to "drain a broker
// subscription channel".
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

// Consumer drains one topic's subscription into one worker.Runtime.
type Consumer struct {
	Topic   string
	Broker  storage.QueueBroker
	Runtime *worker.Runtime
	Logger  *zap.Logger
}

// Run subscribes to c.Topic and processes messages until ctx is canceled.
// It never returns a non-nil error except on subscribe failure — per-item
// errors are handled by the worker.Runtime itself (retry/DLQ) and only
// logged here.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.Broker.Subscribe(ctx, c.Topic)
	if err != nil {
		return fmt.Errorf("runner: subscribe to %s: %w", c.Topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			c.process(ctx, raw)
		}
	}
}

func (c *Consumer) process(ctx context.Context, raw []byte) {
	var item domain.WorkItem
	if err := json.Unmarshal(raw, &item); err != nil {
		c.Logger.Error("runner: malformed work item, dropping", zap.String("topic", c.Topic), zap.Error(err))
		return
	}
	if item.MaxAttempts == 0 {
		item.MaxAttempts = c.Runtime.Snapshot().Config.MaxRetries + 1
	}

	result := c.Runtime.Process(ctx, &item)
	if item.Status != domain.WorkRetryScheduled || item.NextRetryAt == nil {
		return
	}

	delay := time.Until(*item.NextRetryAt)
	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		payload, err := json.Marshal(item)
		if err != nil {
			c.Logger.Error("runner: re-marshal retry item failed", zap.Error(err), zap.String("work_item_id", item.ID))
			return
		}
		if err := c.Broker.Publish(ctx, c.Topic, payload); err != nil {
			c.Logger.Error("runner: republish retry item failed", zap.Error(err), zap.String("work_item_id", item.ID))
		}
	}()
	_ = result
}

// BrokerRequeuer implements ops.Requeuer by publishing a replayed work
// item back onto the broker topic named after its own Type, exactly where
// the original Consumer for that worker type is subscribed.
type BrokerRequeuer struct {
	Broker storage.QueueBroker
}

// Enqueue implements ops.Requeuer.
func (r *BrokerRequeuer) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("runner: marshal requeued item: %w", err)
	}
	return r.Broker.Publish(ctx, item.Type, payload)
}

// MemoryDLQAdapter adapts worker.MemoryDLQ's non-ctx List/Replay to
// ops.DLQStore, for single-process demo runs with no database configured.
// worker.PostgresDLQ already matches ops.DLQStore's signatures directly.
type MemoryDLQAdapter struct {
	DLQ           *worker.MemoryDLQ
	ResetAttempts bool
}

// List implements ops.DLQStore.
func (a *MemoryDLQAdapter) List(ctx context.Context) ([]*domain.WorkItem, error) {
	return a.DLQ.List(), nil
}

// Replay implements ops.DLQStore.
func (a *MemoryDLQAdapter) Replay(ctx context.Context, workItemID string, resetAttempts bool) (*domain.WorkItem, error) {
	item, ok := a.DLQ.Replay(workItemID, resetAttempts)
	if !ok {
		return nil, fmt.Errorf("runner: work item %s not found in dlq", workItemID)
	}
	return item, nil
}
