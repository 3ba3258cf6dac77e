package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/outbox"
	"github.com/cschwartz85032/loanserve-sub007/internal/remittance"
	"github.com/cschwartz85032/loanserve-sub007/internal/vendor"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the cron-driven remittance, outbox, and vendor-cache housekeeping jobs",
	RunE:  runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

// runScheduler wires three recurring jobs onto one cron.Cron: a remittance
// run per active (tenant, investor) pair, an outbox drain, and a vendor
// cache eviction sweep. Each job's cadence is independently configurable
// (scheduler.*_cron) so an operator can run remittances "last business day
// of month" style without redeploying. Grounded on the same ticker-driven
// background-job shape as outbox_cmd.go, generalized from a fixed interval
// to cron expressions via the teacher's own robfig/cron dependency.
func runScheduler(cmd *cobra.Command, args []string) error {
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

	c := cron.New()

	if _, err := c.AddFunc(cfg.Scheduler.RemittanceCron, func() {
		runScheduledRemittances(ctx, d, logger)
	}); err != nil {
		return fmt.Errorf("scheduler: invalid scheduler.remittance_cron %q: %w", cfg.Scheduler.RemittanceCron, err)
	}

	if _, err := c.AddFunc(cfg.Scheduler.OutboxDispatchCron, func() {
		runScheduledOutboxDispatch(ctx, d, logger)
	}); err != nil {
		return fmt.Errorf("scheduler: invalid scheduler.outbox_dispatch_cron %q: %w", cfg.Scheduler.OutboxDispatchCron, err)
	}

	if _, err := c.AddFunc(cfg.Scheduler.VendorCacheEvictCron, func() {
		runScheduledVendorCacheEvict(ctx, d, logger)
	}); err != nil {
		return fmt.Errorf("scheduler: invalid scheduler.vendor_cache_evict_cron %q: %w", cfg.Scheduler.VendorCacheEvictCron, err)
	}

	logger.Info("scheduler: starting",
		zap.String("remittance_cron", cfg.Scheduler.RemittanceCron),
		zap.String("outbox_dispatch_cron", cfg.Scheduler.OutboxDispatchCron),
		zap.String("vendor_cache_evict_cron", cfg.Scheduler.VendorCacheEvictCron),
	)
	c.Start()
	<-ctx.Done()
	logger.Info("scheduler: shutting down")
	<-c.Stop().Done()
	return nil
}

func runScheduledRemittances(ctx context.Context, d *deps, logger *zap.Logger) {
	holdings, ok := d.holdings.(*remittance.PostgresHoldingRepo)
	if !ok {
		logger.Error("scheduler: remittance job requires a postgres-backed holding repo, skipping")
		return
	}
	pairs, err := holdings.DistinctActiveInvestors(ctx)
	if err != nil {
		logger.Error("scheduler: list active investors failed", zap.Error(err))
		return
	}

	engine := d.remittanceEngine()
	asOf := time.Now().UTC()
	for _, pair := range pairs {
		result, err := engine.RunOnce(ctx, pair.TenantID, pair.InvestorID, asOf)
		if err != nil {
			logger.Error("scheduler: remittance run failed",
				zap.String("tenant_id", pair.TenantID),
				zap.String("investor_id", pair.InvestorID.String()),
				zap.Error(err))
			continue
		}
		logger.Info("scheduler: remittance run complete",
			zap.String("tenant_id", pair.TenantID),
			zap.String("investor_id", pair.InvestorID.String()),
			zap.String("run_id", runID(result)))
	}
}

// runID pulls the run identifier out of a RunResult without requiring the
// scheduler to know its full shape — only its Run.ID field matters here.
func runID(result remittance.RunResult) string {
	if result.Run == nil {
		return ""
	}
	return result.Run.ID.String()
}

func runScheduledOutboxDispatch(ctx context.Context, d *deps, logger *zap.Logger) {
	store := outbox.NewPostgresStore(d.pool)
	dispatcher := outbox.NewDispatcher(store, d.broker, nil, d.auditSink, logger)
	n, err := dispatcher.RunOnce(ctx, 100)
	if err != nil {
		logger.Error("scheduler: outbox dispatch failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("scheduler: outbox dispatch published batch", zap.Int("count", n))
	}
}

func runScheduledVendorCacheEvict(ctx context.Context, d *deps, logger *zap.Logger) {
	cache, ok := d.vendorCache.(*vendor.PostgresCacheStore)
	if !ok {
		logger.Error("scheduler: vendor cache evict requires a postgres-backed cache store, skipping")
		return
	}
	n, err := cache.EvictExpired(ctx)
	if err != nil {
		logger.Error("scheduler: vendor cache evict failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("scheduler: vendor cache evict removed expired rows", zap.Int64("count", n))
	}
}
