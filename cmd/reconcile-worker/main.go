package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/allocation"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("worker", "reconcile").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.ReconcileInterval).Msg("reconcile-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(rootCtx, cfg, logger)
	if err != nil {
		a.Close()
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Service, logger)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *allocation.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	found, err := svc.Reconcile(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().Int("discrepancies", len(found)).Dur("took", time.Since(start)).Msg("reconcile run complete")
}
