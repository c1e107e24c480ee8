package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/api"
	"github.com/realdiag-server/internal/cache"
	"github.com/realdiag-server/internal/config"
	"github.com/realdiag-server/internal/database"
	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/logging"
	"github.com/realdiag-server/internal/repository"
	"github.com/realdiag-server/internal/service"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	tiered, closeCache, err := newResultCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var resultCache service.ResultCache
	if tiered != nil {
		resultCache = tiered
	}

	documents := repository.NewDocumentStore(cfg.Knowledge.RulesDir, cfg.Knowledge.TreesDir, logger)
	engine, err := service.LoadDiagnosticService(ctx, documents, resultCache, logger)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}

	store, storeReady, closeStore, err := newFeedbackStore(ctx, cfg.Feedback, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var feedbackHandler api.FeedbackHandler
	if store != nil {
		feedbackHandler = service.NewFeedbackService(store, engine.Rules(), logger)
	}

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"feedback_driver": cfg.Feedback.Driver,
	}).Infof("Starting %s server", cfg.App.Name)

	server := api.NewServer(configManager, engine, feedbackHandler, logger)
	if storeReady != nil {
		server.AddReadinessCheck("feedback_db", storeReady)
	}
	if tiered != nil {
		server.SetCacheStats(tiered)
	}
	return server.Start(ctx)
}

// newResultCache builds the tiered cache, nil when caching is disabled. A
// Redis tier that cannot be reached at startup is left out rather than
// failing the server.
func newResultCache(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (*cache.TieredCache, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	memory, err := cache.NewMemoryCache(cfg.MaxItems, cfg.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, caching in memory only")
			redisCache = nil
		}
	}

	tiered := cache.NewTieredCache(memory, redisCache, logger)
	return tiered, func() {
		if err := tiered.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close cache")
		}
	}, nil
}

// newFeedbackStore opens the configured feedback store; driver "none"
// returns a nil store. The readiness check is nil unless the store is
// backed by PostgreSQL.
func newFeedbackStore(ctx context.Context, cfg domain.FeedbackConfig, logger *logrus.Logger) (feedback.Store, api.ReadinessCheck, func(), error) {
	switch cfg.Driver {
	case "none":
		return nil, nil, func() {}, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create feedback directory: %w", err)
		}
		store, err := feedback.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open feedback database: %w", err)
		}
		return store, nil, func() { store.Close() }, nil

	case "postgres":
		if cfg.Migrate {
			runner, err := database.NewMigrationRunner(cfg.PostgresURL, logger)
			if err != nil {
				return nil, nil, nil, err
			}
			err = runner.Up(ctx)
			runner.Close()
			if err != nil {
				return nil, nil, nil, err
			}
		}

		db, err := database.NewConnection(ctx, cfg.PostgresURL, database.DefaultPoolOptions(), logger)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := feedback.NewPostgresStore(db.SQL())
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store, db.Health, func() {
			store.Close()
			db.Close()
		}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown feedback driver %q", cfg.Driver)
	}
}
