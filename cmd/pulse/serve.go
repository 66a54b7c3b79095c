package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/api"
	"github.com/tradingpro/pulse/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PULSE server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	log.Info("starting PULSE server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
	)

	server := api.NewServer(api.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Dependencies{
		Signals:     rt.signals,
		Articles:    rt.articles,
		Subscribers: rt.subscribers,
		Deliveries:  rt.deliveries,
		Generator:   rt.generator,
		Lifecycle:   rt.lifecycle,
		Webhooks:    rt.webhooks,
		Metrics:     rt.registry,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go expiryLoop(ctx, rt)
	go sweepLoop(ctx, rt)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down PULSE server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// expiryLoop periodically retires active signals past their expiry
// time. Expired signals leave the webhook-eligible set immediately.
func expiryLoop(ctx context.Context, rt *runtime) {
	interval := rt.cfg.Signals.ExpiryInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := rt.lifecycle.ExpireOldSignals(ctx)
			if err != nil {
				rt.log.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if rt.registry != nil {
				rt.registry.RecordExpired(n)
			}
		}
	}
}

// sweepLoop periodically retries failed webhook deliveries whose
// backoff window has elapsed.
func sweepLoop(ctx context.Context, rt *runtime) {
	interval := rt.cfg.Delivery.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := rt.webhooks.RetryFailedDeliveries(ctx)
			if err != nil {
				rt.log.Error("delivery retry sweep failed", zap.Error(err))
				continue
			}
			if recovered > 0 {
				rt.log.Info("retry sweep recovered deliveries",
					zap.Int("recovered", recovered))
			}
		}
	}
}
