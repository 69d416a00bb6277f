// The worker keeps the shared world moving while nobody is pressing
// buttons: it drifts the house leaderboard accounts on a fixed cadence so
// the ranking never looks abandoned.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mercado/internal/catalog"
	"mercado/internal/config"
	"mercado/internal/store"
)

const (
	driftEvery  = 5 * time.Minute
	driftGrowth = 0.002
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("load catalog", "path", cfg.CatalogPath, "err", err)
			os.Exit(1)
		}
		cat = loaded
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("open database", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	bots := make([]store.Entry, 0, len(cat.Bots))
	for _, b := range cat.Bots {
		bots = append(bots, store.Entry{
			Username:         b.Username,
			Title:            b.Title,
			PrestigeLevel:    b.PrestigeLevel,
			LifetimeEarnings: b.LifetimeEarnings,
			PlayTime:         b.PlayTime,
			IsBot:            true,
		})
	}
	if err := db.SeedBots(ctx, bots); err != nil {
		logger.Error("seed bots", "err", err)
		os.Exit(1)
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("MERCADO_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if err := db.DriftBots(ctx, driftGrowth, driftEvery); err != nil {
			logger.Error("drift failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(driftEvery)
	defer ticker.Stop()

	logger.Info("mercado worker running", "drift_every", driftEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return
		case <-ticker.C:
			if err := db.DriftBots(ctx, driftGrowth, driftEvery); err != nil {
				logger.Error("drift failed", "err", err)
			}
		}
	}
}
