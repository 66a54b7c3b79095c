package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradingpro/pulse/internal/logger"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep",
	Long: `Expire active signals past their expiry time and retry failed
webhook deliveries that are due. Useful from cron against a sqlite
storage backend.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	expired, err := rt.lifecycle.ExpireOldSignals(ctx)
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}

	recovered, err := rt.webhooks.RetryFailedDeliveries(ctx)
	if err != nil {
		return fmt.Errorf("delivery retry sweep: %w", err)
	}

	fmt.Printf("Expired %d signals, recovered %d deliveries\n", expired, recovered)
	return nil
}
