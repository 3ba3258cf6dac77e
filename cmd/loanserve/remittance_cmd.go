package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	remittanceTenantID   string
	remittanceInvestorID string
	remittanceAsOf       string
)

var remittanceRunCmd = &cobra.Command{
	Use:   "remittance-run",
	Short: "Run one remittance cycle for a tenant/investor as of a date",
	RunE:  runRemittanceRun,
}

func init() {
	remittanceRunCmd.Flags().StringVar(&remittanceTenantID, "tenant", "", "tenant ID")
	remittanceRunCmd.Flags().StringVar(&remittanceInvestorID, "investor", "", "investor ID (UUID)")
	remittanceRunCmd.Flags().StringVar(&remittanceAsOf, "as-of", "", "as-of date, RFC3339 (defaults to now)")
	_ = remittanceRunCmd.MarkFlagRequired("tenant")
	_ = remittanceRunCmd.MarkFlagRequired("investor")
	rootCmd.AddCommand(remittanceRunCmd)
}

func runRemittanceRun(cmd *cobra.Command, args []string) error {
	logger, err := loadLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	cfg := loadConfig(logger)
	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer d.Close()

	investorID, err := uuid.Parse(remittanceInvestorID)
	if err != nil {
		return fmt.Errorf("invalid --investor: %w", err)
	}
	asOf := time.Now().UTC()
	if remittanceAsOf != "" {
		asOf, err = time.Parse(time.RFC3339, remittanceAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	result, err := d.remittanceEngine().RunOnce(ctx, remittanceTenantID, investorID, asOf)
	if err != nil {
		return fmt.Errorf("remittance run failed: %w", err)
	}
	if result.Skipped {
		logger.Info("remittance run: skipped (run already exists for this period)", zap.String("tenant", remittanceTenantID), zap.String("investor", remittanceInvestorID))
		return nil
	}
	logger.Info("remittance run: completed", zap.String("report_uri", result.ReportURI), zap.String("sha256", result.SHA256))
	return nil
}
