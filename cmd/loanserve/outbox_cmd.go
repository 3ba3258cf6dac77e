package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/outbox"
)

var outboxBatchSize int
var outboxInterval time.Duration

var outboxCmd = &cobra.Command{
	Use:   "outbox-dispatcher",
	Short: "Poll the transactional outbox and publish claimed messages to the broker",
	RunE:  runOutboxDispatcher,
}

func init() {
	outboxCmd.Flags().IntVar(&outboxBatchSize, "batch-size", 100, "max outbox rows claimed per poll")
	outboxCmd.Flags().DurationVar(&outboxInterval, "interval", 2*time.Second, "poll interval")
	rootCmd.AddCommand(outboxCmd)
}

func runOutboxDispatcher(cmd *cobra.Command, args []string) error {
	logger, err := loadLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig(logger)
	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer d.Close()

	store := outbox.NewPostgresStore(d.pool)
	dispatcher := outbox.NewDispatcher(store, d.broker, nil, d.auditSink, logger)

	ticker := time.NewTicker(outboxInterval)
	defer ticker.Stop()

	logger.Info("outbox dispatcher: starting", zap.Duration("interval", outboxInterval), zap.Int("batch_size", outboxBatchSize))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := dispatcher.RunOnce(ctx, outboxBatchSize)
			if err != nil {
				logger.Error("outbox dispatcher: run failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("outbox dispatcher: published batch", zap.Int("count", n))
			}
		}
	}
}
