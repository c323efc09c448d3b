package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/config"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/router"
	"github.com/avolov/imgd/internal/storage"
	"github.com/avolov/imgd/internal/sweeper"
	"github.com/avolov/imgd/internal/transcoder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer c.Close()
	}

	worker := transcoder.New(db, store, c, cfg.DefaultTTL, cfg.QueueSize, cfg.Workers)
	worker.Start(ctx)

	go sweeper.New(db, store, c, cfg.SweepInterval).Run(ctx)

	srv := router.New(db, store, c, worker, cfg)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := httpServer.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", cfg.ListenAddr,
		"db_driver", cfg.DBDriver,
		"storage", cfg.StorageBackend,
		"redis", cfg.RedisAddr != "")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	worker.Wait()
}

func openDatabase(cfg *config.Config) (database.Database, error) {
	if cfg.DBDriver == "postgres" {
		return database.NewPostgresDB(cfg.DBDSN)
	}
	return database.NewSQLiteDB(cfg.DBDSN)
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "gcs" {
		return storage.NewGCS(ctx, cfg.GCSBucket)
	}
	return storage.NewFileSystem(cfg.StoragePath), nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
