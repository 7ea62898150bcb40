// Command sweeper fails donations stuck in pending longer than the
// configured age. Initiation failures intentionally leave pending rows
// behind; this job is the out-of-band cleanup for them. Because it uses the
// same conditional update as the reconcilers, a callback that lands inside
// the window always wins over the sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "sweeper").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	donations := repo.NewDonationRepository(dbpool)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Int("max_age_hours", cfg.SweepPendingMaxAge).
		Msg("sweeper started")

	sweep(ctx, donations, cfg.SweepPendingMaxAge, logger)
	for {
		select {
		case <-ticker.C:
			sweep(ctx, donations, cfg.SweepPendingMaxAge, logger)
		case <-stop:
			logger.Info().Msg("sweeper stopped")
			return
		}
	}
}

func sweep(ctx context.Context, donations *repo.DonationRepositoryPG, maxAgeHours int, logger infra.Logger) {
	swept, err := donations.FailStalePending(ctx, maxAgeHours)
	if err != nil {
		logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if swept > 0 {
		logger.Info().Int64("swept", swept).Msg("stale pending donations failed")
	}
}
