// Command loanserve is the single binary for every LoanServe process: the
// asynchronous workers, the outbox dispatcher, the scheduled remittance and
// export runs, the operator console HTTP server, and the migration runner.
// One binary with cobra subcommands mirrors the registry's cmd/ layout,
// where each cmd/<name>/main.go is its own composition root; here a single
// composition root (deps.go) is shared across subcommands of one binary
// instead of being duplicated per-binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "loanserve",
	Short: "LoanServe ingest, extraction, remittance and export pipeline",
}

// loadLogger builds the process-wide zap logger. Every subcommand calls
// this once at the start of its RunE so log lines are structured JSON in production and
// readable console output under LOANSERVE_DEV=1.
func loadLogger() (*zap.Logger, error) {
	if os.Getenv("LOANSERVE_DEV") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config: failed to load", zap.Error(err))
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
