// Package main provides the golden path registry server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/goldenpathdev/registry/internal/config"
	"github.com/goldenpathdev/registry/internal/server"
	"github.com/goldenpathdev/registry/pkg/audit"
	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/cache"
	"github.com/goldenpathdev/registry/pkg/content"
	"github.com/goldenpathdev/registry/pkg/gc"
	"github.com/goldenpathdev/registry/pkg/ha"
	"github.com/goldenpathdev/registry/pkg/metadata"
	"github.com/goldenpathdev/registry/pkg/registry"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (optional)")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	logger.Info("starting registry server",
		"listen", cfg.Listen,
		"database", cfg.Database.Type,
		"content", cfg.Content.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(cfg.Database)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	index := metadata.NewStore(gormDB)
	auth := authority.NewDBAuthority(gormDB, logger)

	trail := audit.NewStore(gormDB)

	// Only one replica migrates; the rest wait on the lock.
	locker := ha.NewMigrationLocker(gormDB)
	err = locker.WithLock(ctx, func() error {
		if err := index.AutoMigrate(); err != nil {
			return err
		}
		if err := auth.AutoMigrate(); err != nil {
			return err
		}
		return trail.AutoMigrate()
	})
	if err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	blobs, err := setupContentStore(ctx, cfg.Content)
	if err != nil {
		glog.Fatalf("Failed to set up content store: %v", err)
	}

	if cfg.Auth.BootstrapNamespace != "" {
		if err := bootstrapUser(ctx, auth, cfg.Auth, logger); err != nil {
			glog.Fatalf("Failed to bootstrap user: %v", err)
		}
	}

	cachedAuth := authority.NewCachedAuthority(auth, cfg.Auth.ResolveTTL)
	svc := registry.NewService(index, blobs, cachedAuth, logger)

	if cfg.Sweep.Enabled {
		sweeper := gc.NewSweeper(index, blobs, gc.Config{
			Interval: cfg.Sweep.Interval,
			Grace:    cfg.Sweep.Grace,
		}, logger)
		go sweeper.Run(ctx)
	}

	srv := server.New(svc, index, auth, cachedAuth, logger)
	if cfg.Audit.Enabled {
		srv.WithAudit(trail, audit.Config{
			Enabled:       true,
			RetentionDays: cfg.Audit.RetentionDays,
			LogDenied:     cfg.Audit.LogDenied,
		})
		retention := audit.NewRetentionWorker(trail, cfg.Audit.RetentionDays, logger)
		go retention.Run(ctx)
	}
	if cfg.Cache.Enabled {
		srv.WithPageCache(cache.NewLRU(cfg.Cache.MaxSize, cfg.Cache.TTL))
	}
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Fatalf("Server failed: %v", err)
	}
	logger.Info("server stopped")
}

// setupDatabase opens the metadata database for the configured driver.
func setupDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	switch cfg.Type {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "mysql":
		return gorm.Open(mysql.Open(cfg.DSN), gormCfg)
	default:
		return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	}
}

// setupContentStore builds the blob backend and wraps it with bounded
// retries.
func setupContentStore(ctx context.Context, cfg config.ContentConfig) (content.Store, error) {
	var store content.Store
	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, err
		}
		store = content.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket)
	default:
		fsStore, err := content.NewFSStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		store = fsStore
	}
	if cfg.MaxRetries > 0 {
		store = content.NewRetryStore(store, uint64(cfg.MaxRetries))
	}
	return store, nil
}

// bootstrapUser seeds a development account with one API key. The key is
// logged once at startup; it is never retrievable again.
func bootstrapUser(ctx context.Context, auth *authority.DBAuthority, cfg config.AuthConfig, logger *slog.Logger) error {
	email := cfg.BootstrapEmail
	if email == "" {
		email = "dev@localhost"
	}
	user, err := auth.EnsureUser(ctx, "bootstrap", email, cfg.BootstrapNamespace)
	if err != nil {
		return err
	}

	keys, err := auth.ListKeys(ctx, user.UserID)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return nil
	}

	plaintext, _, err := auth.CreateKey(ctx, user.UserID, "bootstrap", nil)
	if err != nil {
		return err
	}
	logger.Info("bootstrapped development api key",
		"namespace", user.Namespace, "key", plaintext)
	return nil
}
