// Package config loads server configuration from an optional YAML file and
// REGISTRY_-prefixed environment variables, with flags applied on top by the
// caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	Listen   string         `mapstructure:"listen"`
	Database DatabaseConfig `mapstructure:"database"`
	Content  ContentConfig  `mapstructure:"content"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// DatabaseConfig selects the metadata index backend.
type DatabaseConfig struct {
	// Type is sqlite, postgres or mysql.
	Type string `mapstructure:"type"`
	// DSN is the driver connection string; for sqlite, a file path or
	// ":memory:".
	DSN string `mapstructure:"dsn"`
}

// ContentConfig selects the blob store backend.
type ContentConfig struct {
	// Backend is fs or s3.
	Backend string `mapstructure:"backend"`
	// Root is the base directory for the fs backend.
	Root string `mapstructure:"root"`
	// Bucket and Region configure the s3 backend.
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	// MaxRetries bounds the retry wrapper around store operations.
	MaxRetries int `mapstructure:"max_retries"`
}

// AuthConfig tunes credential resolution.
type AuthConfig struct {
	// ResolveTTL bounds how long a revoked key can keep resolving.
	ResolveTTL time.Duration `mapstructure:"resolve_ttl"`
	// Bootstrap seeds a development user + API key at startup when the
	// namespace is set. Never enable in production.
	BootstrapNamespace string `mapstructure:"bootstrap_namespace"`
	BootstrapEmail     string `mapstructure:"bootstrap_email"`
}

// SweepConfig controls the orphan-blob sweeper.
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Grace    time.Duration `mapstructure:"grace"`
}

// AuditConfig controls the mutation audit trail.
type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
	LogDenied     bool `mapstructure:"log_denied"`
}

// CacheConfig controls the read-path response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8080")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "registry.db")
	v.SetDefault("content.backend", "fs")
	v.SetDefault("content.root", "data/content")
	v.SetDefault("content.region", "us-east-1")
	v.SetDefault("content.max_retries", 3)
	v.SetDefault("auth.resolve_ttl", "30s")
	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.interval", "15m")
	v.SetDefault("sweep.grace", "1h")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.log_denied", true)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.max_size", 1024)

	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unusable configurations early.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}
	switch c.Content.Backend {
	case "fs":
		if c.Content.Root == "" {
			return fmt.Errorf("content.root is required for the fs backend")
		}
	case "s3":
		if c.Content.Bucket == "" {
			return fmt.Errorf("content.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown content backend %q", c.Content.Backend)
	}
	return nil
}
