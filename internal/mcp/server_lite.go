// This file contains the lightweight server that requires no external databases.
package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/cache"
	litecfg "github.com/realdiag-server/internal/config"
	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/logging"
	"github.com/realdiag-server/internal/repository"
	"github.com/realdiag-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses in-memory caching and SQLite for persistence.
type LiteServer struct {
	config        *litecfg.LiteConfig
	server        *Server
	engine        *service.DiagnosticService
	feedbackStore feedback.Store
	cache         *cache.TieredCache
	logger        *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer loads the knowledge base named by cfg and creates the MCP
// server. Logs go to stderr because stdout carries the protocol.
func NewLiteServer(ctx context.Context, cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Ensure data directory exists
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize memory cache
	memCache, err := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	server.cache = cache.NewTieredCache(memCache, nil, server.logger)

	documents := repository.NewDocumentStore(cfg.RulesDir, cfg.TreesDir, server.logger)
	engine, err := service.LoadDiagnosticService(ctx, documents, server.cache, server.logger)
	if err != nil {
		server.cache.Close()
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	server.engine = engine

	store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
	if err != nil {
		server.cache.Close()
		return nil, fmt.Errorf("failed to create feedback store: %w", err)
	}
	server.feedbackStore = store

	feedbackService := service.NewFeedbackService(server.feedbackStore, engine.Rules(), server.logger)
	server.server = NewServer(engine, feedbackService, domain.AppInfo{App: domain.AppName, Version: domain.AppVersion}, server.logger)
	server.server.exportDir = cfg.ExportDir()

	server.logger.WithFields(logrus.Fields{
		"rules_dir": cfg.RulesDir,
		"trees_dir": cfg.TreesDir,
		"families":  len(engine.ListFamilies()),
		"trees":     len(engine.ListTrees()),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdio until ctx is cancelled or stdin closes.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
		}
	}
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// GetCache returns the result cache for external access.
func (s *LiteServer) GetCache() *cache.TieredCache {
	return s.cache
}
