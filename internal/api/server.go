package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/cache"
	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/middleware"
	"github.com/realdiag-server/internal/service"
)

// FeedbackHandler is the part of service.FeedbackService the HTTP layer uses.
type FeedbackHandler interface {
	Submit(ctx context.Context, req service.SubmitFeedbackRequest) (*feedback.Feedback, error)
	List(ctx context.Context, limit, offset int) (*service.FeedbackPage, error)
	Export(ctx context.Context, w io.Writer) error
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// CacheStatsReporter exposes result cache counters on /health/ready.
type CacheStatsReporter interface {
	Stats() cache.Stats
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	engine        domain.DiagnosticEngine
	feedback      FeedbackHandler
	checks        map[string]ReadinessCheck
	cacheStats    CacheStatsReporter
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. feedback may be nil, in
// which case the feedback routes answer 503.
func NewServer(configManager domain.ConfigManager, engine domain.DiagnosticEngine, feedback FeedbackHandler, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" && configManager.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger.Out))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		engine:        engine,
		feedback:      feedback,
		checks:        make(map[string]ReadinessCheck),
		logger:        logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// AddReadinessCheck makes /health/ready depend on check.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

// SetCacheStats reports the result cache counters on /health/ready.
func (s *Server) SetCacheStats(reporter CacheStatsReporter) {
	s.cacheStats = reporter
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/version", s.handleVersion)
	s.router.GET("/health/version", s.handleHealthVersion)
	s.router.GET("/health/ready", s.handleReady)

	diagnostic := s.router.Group("/diagnostic")
	{
		diagnostic.GET("/trees", s.handleListTrees)
		diagnostic.POST("/evaluate/:tree_id", s.handleEvaluateTree)
	}

	rules := s.router.Group("/rules")
	{
		rules.GET("/families", s.handleListFamilies)
		rules.GET("/family/:family", s.handleGetFamily)
		rules.GET("/rule/:rule_id", s.handleGetRule)
		rules.GET("/search", s.handleSearchRules)
	}

	search := s.router.Group("/search")
	{
		search.POST("/by-symptoms", s.handleSearchBySymptoms)
		search.GET("/suggestions", s.handleSuggestions)
	}

	s.router.GET("/reference/:family", s.handleReference)

	fb := s.router.Group("/feedback")
	{
		fb.POST("", s.handleSubmitFeedback)
		fb.GET("", s.handleListFeedback)
		fb.GET("/export", s.handleExportFeedback)
	}
}
