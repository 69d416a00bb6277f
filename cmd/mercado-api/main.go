package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mercado/internal/api"
	"mercado/internal/catalog"
	"mercado/internal/chat"
	"mercado/internal/config"
	"mercado/internal/integrity"
	"mercado/internal/session"
	"mercado/internal/store"
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
	} else if err := cat.Validate(); err != nil {
		logger.Error("default catalog invalid", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("open database", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.SeedBots {
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
	}

	signer := integrity.NewSigner(cfg.IntegritySecret)
	sessions := session.NewManager(cat, signer, db, cfg.RankRefresh, logger)

	hub := chat.NewHub(db, logger)
	go hub.Run(ctx)

	server := api.New(cfg, logger, cat, sessions, db, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sessions.Shutdown(shutdownCtx)
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("mercado api listening", "addr", cfg.Addr, "rank_refresh", cfg.RankRefresh.String(), "retro_skin", cfg.RankRetro)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
