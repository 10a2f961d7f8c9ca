package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/logcove/logcove/pkg/config"
	"github.com/logcove/logcove/pkg/maintenance"
	"github.com/logcove/logcove/pkg/storage/archive"
	"github.com/logcove/logcove/pkg/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting logcove",
		zap.String("listen", cfg.Server.ListenAddress),
		zap.String("db_path", cfg.Storage.DBPath))

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	// 1. Primary store
	store, err := sqlite.NewStore(cfg.Storage.DBPath, logger)
	if err != nil {
		logger.Fatal("Failed to open log store", zap.Error(err))
	}
	defer store.Close()

	// 2. Archive tier
	var arc *archive.Archiver
	if cfg.Retention.CompressionEnabled {
		arc, err = archive.NewArchiver(cfg.Storage.ArchiveDir, store, logger)
		if err != nil {
			logger.Fatal("Failed to open archive", zap.Error(err))
		}
	}

	// 3. Maintenance scheduler. It guarantees at most one pass in flight;
	// the store and archiver only expose the idempotent operations.
	sched := maintenance.NewScheduler(maintenance.Config{
		Interval:                cfg.Retention.MaintenanceInterval,
		RetentionDays:           cfg.Retention.RetentionDays,
		CompressionEnabled:      cfg.Retention.CompressionEnabled,
		CompressOlderThanDays:   cfg.Retention.CompressOlderThanDays,
		CompressedRetentionDays: cfg.Retention.CompressedRetentionDays,
	}, store, compactorOrNil(arc), logger)

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	go sched.Run(schedCtx)

	// 4. Router
	handler := NewHandler(store, arc, sched, cfg.Limits.MaxBatchSize, logger)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", HandleHealth)
	r.Get("/status", handler.HandleStatus)

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			secret := cfg.Auth.Secret
			if secret == "" {
				logger.Warn("auth.secret not set, using default 'dev-secret'")
				secret = "dev-secret"
			}
			r.Use(APIKeyAuth([]byte(secret), logger))
		}

		r.Post("/logs", handler.HandleCreateLog)
		r.Post("/logs/batch", handler.HandleCreateBatch)
		r.Get("/logs", handler.HandleGetLogs)
		r.Get("/logs/stats", handler.HandleGetStats)
		r.Get("/logs/size", handler.HandleGetSize)
		r.Delete("/logs/cleanup", handler.HandleCleanup)
		r.Post("/maintenance/run", handler.HandleRunMaintenance)
	})

	// 5. Serve with graceful shutdown
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	stopSched()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server exiting")
}

// compactorOrNil avoids handing the scheduler a typed-nil interface.
func compactorOrNil(arc *archive.Archiver) maintenance.Compactor {
	if arc == nil {
		return nil
	}
	return arc
}

func initLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
