package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinbot-dev/coinbot/internal/api"
	"github.com/coinbot-dev/coinbot/internal/auth"
	"github.com/coinbot-dev/coinbot/internal/bot"
	"github.com/coinbot-dev/coinbot/internal/config"
	"github.com/coinbot-dev/coinbot/internal/db"
	"github.com/coinbot-dev/coinbot/internal/economy"
	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/logger"
	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/repository"
	"github.com/coinbot-dev/coinbot/internal/repository/memory"
	"github.com/coinbot-dev/coinbot/internal/repository/postgres"
	"github.com/coinbot-dev/coinbot/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	if cfg.DiscordToken == "" {
		log.Error("DISCORD_TOKEN environment variable not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	formula := leveling.Formula{
		XPPerLevelBase:    cfg.XPPerLevelBase,
		BaseCoinsPerLevel: cfg.BaseCoinsPerLevel,
	}

	var store repository.Ledger
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
		store = postgres.New(pool, formula)
		log.Info("using postgres ledger")
	} else {
		store = memory.New(formula, cfg.LedgerFile, log)
		log.Info("using in-memory ledger", "file", cfg.LedgerFile)
	}
	store = repository.WithRetry(store)

	wp := worker.NewPool(4)
	defer wp.Stop()

	econ := economy.NewService(store, formula, cfg, log)

	b, err := bot.New(cfg, econ, wp, log)
	if err != nil {
		log.Error("bot init", "err", err)
		os.Exit(1)
	}

	gain := leveling.GainRule{
		BaseXP:         cfg.BaseXPPerMessage,
		MaxLengthBonus: cfg.MaxLengthBonus,
		RandomBonus:    cfg.RandomXPBonus,
	}
	b.SetEngine(leveling.NewEngine(store, formula, gain, cfg.XPCooldown, b, wp, log))

	tm := auth.NewTokenManager(cfg.JWTSecret, time.Hour)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(cfg, store, b, tm),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("ops server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ops server", "err", err)
		}
	}()

	if err := b.Start(); err != nil {
		log.Error("discord connect", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := b.Stop(); err != nil {
		log.Error("discord disconnect", "err", err)
	}
}
