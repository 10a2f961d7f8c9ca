// Package config loads service settings from an optional YAML file and
// LOGCOVE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds the persistence paths.
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	ArchiveDir string `mapstructure:"archive_dir"`
}

// AuthConfig holds API-key settings.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

// RetentionConfig holds the maintenance thresholds.
type RetentionConfig struct {
	RetentionDays           int           `mapstructure:"retention_days"`
	CompressionEnabled      bool          `mapstructure:"compression_enabled"`
	CompressOlderThanDays   int           `mapstructure:"compress_older_than_days"`
	CompressedRetentionDays int           `mapstructure:"compressed_retention_days"`
	MaintenanceInterval     time.Duration `mapstructure:"maintenance_interval"`
}

// LimitsConfig holds request-size caps.
type LimitsConfig struct {
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Retention RetentionConfig `mapstructure:"retention"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
}

// Load reads the configuration. configPath may be empty, in which case only
// defaults and environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOGCOVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen_address", "127.0.0.1:8081")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.db_path", "data/logs.db")
	v.SetDefault("storage.archive_dir", "data/archive")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.secret", "")
	v.SetDefault("retention.retention_days", 90)
	v.SetDefault("retention.compression_enabled", true)
	v.SetDefault("retention.compress_older_than_days", 7)
	v.SetDefault("retention.compressed_retention_days", 365)
	v.SetDefault("retention.maintenance_interval", "24h")
	v.SetDefault("limits.max_batch_size", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Retention.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention.retention_days must be positive")
	}
	if cfg.Retention.CompressionEnabled &&
		cfg.Retention.CompressOlderThanDays >= cfg.Retention.CompressedRetentionDays {
		return nil, fmt.Errorf("retention.compress_older_than_days must be below retention.compressed_retention_days")
	}
	if cfg.Limits.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("limits.max_batch_size must be positive")
	}

	return &cfg, nil
}
