package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/config"
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

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting database setup...")

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Storage.ArchiveDir, 0o755); err != nil {
		logger.Fatal("Failed to create archive directory", zap.Error(err))
	}

	store, err := sqlite.NewStore(cfg.Storage.DBPath, logger)
	if err != nil {
		logger.Fatal("Database setup failed", zap.Error(err))
	}
	defer store.Close()

	logger.Info("Database setup completed successfully",
		zap.String("db_path", cfg.Storage.DBPath),
		zap.String("archive_dir", cfg.Storage.ArchiveDir))
}
