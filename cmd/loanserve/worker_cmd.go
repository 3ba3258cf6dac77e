package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/clock"
	"github.com/cschwartz85032/loanserve-sub007/internal/runner"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

var workerType string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one self-healing worker type, draining its queue topic until stopped",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerType, "type", "", "worker type: intake, vendor-ucdp, vendor-flood, vendor-title, vendor-hoi, notify")
	_ = workerCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(workerCmd)
}

// runWorker builds the worker.Handler named by --type, wraps it in a
// worker.Runtime, and bridges it to the broker topic of the same name via
// a runner.Consumer, running until SIGINT/SIGTERM.
func runWorker(cmd *cobra.Command, args []string) error {
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

	handler, err := handlerFor(d, workerType)
	if err != nil {
		return err
	}

	rt := worker.New(handler, workerConfig(cfg.Worker), d.dlq, d.auditSink, clock.RealClock{}, logger)
	consumer := &runner.Consumer{
		Topic:   handler.Name(),
		Broker:  d.broker,
		Runtime: rt,
		Logger:  logger,
	}

	logger.Info("worker: starting", zap.String("type", handler.Name()))
	return consumer.Run(ctx)
}

func handlerFor(d *deps, name string) (worker.Handler, error) {
	switch name {
	case "intake":
		return d.intakeHandler(), nil
	case "notify":
		return d.notifyHandler(), nil
	case "vendor-ucdp":
		return buildVendorAdapter(d, "ucdp")
	case "vendor-flood":
		return buildVendorAdapter(d, "flood")
	case "vendor-title":
		return buildVendorAdapter(d, "title")
	case "vendor-hoi":
		return buildVendorAdapter(d, "hoi")
	default:
		return nil, fmt.Errorf("unknown worker type %q", name)
	}
}
