// Package main is the entry point for the mentor-match API server.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to:
//  1. Read configuration (defaults, optional YAML file, env vars)
//  2. Create the resources the server does not own (store, image dir, Redis)
//  3. Run the server until SIGINT/SIGTERM, then release those resources
//
// All actual logic lives in internal/.
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
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/mentor-match/internal/config"
	"github.com/sakif/mentor-match/internal/imagestore"
	"github.com/sakif/mentor-match/internal/ratelimit"
	"github.com/sakif/mentor-match/internal/repository/postgres"
	"github.com/sakif/mentor-match/internal/repository/sqlite"
	"github.com/sakif/mentor-match/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === LOGGING ===
	// Human-readable text in development, JSON for log shippers in production.
	var logger *slog.Logger
	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === STORE ===
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	images, err := imagestore.New(cfg.Upload.Dir)
	if err != nil {
		return err
	}

	// === RATE LIMITING ===
	deps := server.Deps{Store: store, Images: images}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			// The limiter fails open, so a Redis outage is not fatal.
			logger.Warn("redis unavailable at startup", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
		}
		cancel()

		if n := cfg.RateLimit.AuthPerMinute; n > 0 {
			deps.AuthLimiter = ratelimit.NewRedis(client, "ratelimit:auth", n)
		}
		if n := cfg.RateLimit.GeneralPerMinute; n > 0 {
			deps.GeneralLimiter = ratelimit.NewRedis(client, "ratelimit:api", n)
		}
	} else {
		if n := cfg.RateLimit.AuthPerMinute; n > 0 {
			deps.AuthLimiter = ratelimit.NewMemory(n)
		}
		if n := cfg.RateLimit.GeneralPerMinute; n > 0 {
			deps.GeneralLimiter = ratelimit.NewMemory(n)
		}
	}

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// openStore connects the configured database. The returned func closes it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (server.Store, func(), error) {
	var (
		store  server.Store
		closer io.Closer
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		store, closer = pg, pg
		logger.Info("using postgres store")

	default:
		if cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		store, closer = db, db
		logger.Info("using sqlite store", slog.String("path", cfg.Database.Path))
	}

	return store, func() {
		if err := closer.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	}, nil
}
