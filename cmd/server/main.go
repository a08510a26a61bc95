package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/KeiJoi/ffxivbingo4all/internal/config"
	"github.com/KeiJoi/ffxivbingo4all/internal/database"
	"github.com/KeiJoi/ffxivbingo4all/internal/migrations"
	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/server"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	if cfg.DBPath != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Rooms and realtime sync ---
	clock := quartz.NewReal()
	st := store.New(db, logger, store.Options{Timeout: cfg.StoreTimeout, Clock: clock})
	broker := server.NewBroker()
	svc := realtime.NewService(st, logger, realtime.Options{
		Verify:        cfg.WinVerification == config.VerifyStrict,
		AdminKey:      cfg.AdminKey,
		LockTimeout:   cfg.StoreTimeout,
		SendQueueSize: cfg.SendQueueSize,
		Publisher:     broker,
	})
	sweeper := store.NewSweeper(st, clock, logger, store.SweeperConfig{
		Retention: cfg.Retention(),
		Interval:  cfg.CleanupInterval,
		OnSwept:   svc.RoomsClosed,
	})
	if cfg.AdminKey == "" {
		logger.Warn("ADMIN_KEY not set, admin endpoints disabled")
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		DB:             db,
		Store:          st,
		Sync:           svc,
		Broker:         broker,
		AdminKey:       cfg.AdminKey,
		PublicDir:      cfg.PublicDir,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "win_verification", string(cfg.WinVerification))
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		svc.Shutdown()
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
