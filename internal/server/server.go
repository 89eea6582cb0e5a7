// Package server assembles the fraud guardian HTTP service.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/alerts"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/auth"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/config"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/gemini"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/health"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/history"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/ledgerwriter"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/logging"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/metrics"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/ratelimit"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/realtime"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/security"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/traces"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	engine       *fraud.Engine
	store        fraud.Store
	hub          *realtime.Hub
	healthReg    *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	shutdownOTel func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Tracing (no-op exporter when no OTLP endpoint is configured)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without traces", "error", err)
	} else {
		s.shutdownOTel = shutdown
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		pgStore := fraud.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate assessment store: %w", err)
		}

		s.db = db
		s.store = pgStore
		s.logger.Info("using PostgreSQL assessment storage", "url", maskDSN(cfg.DatabaseURL))

		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.store = fraud.NewMemoryStore()
		s.logger.Info("using in-memory assessment storage (data will not persist)")
	}

	// AI pattern backend. Missing credentials pin the pattern analyzer in
	// degraded mode; the three local analyzers still run.
	var scorer fraud.PatternScorer
	if cfg.HasAICredentials() {
		scorer = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		s.logger.Info("AI pattern analysis enabled", "model", cfg.GeminiModel)
	} else {
		s.logger.Warn("no Gemini API key configured, AI pattern analysis degraded")
	}
	pattern := fraud.NewPatternAnalyzer(scorer, cfg.AICallTimeout, s.logger)

	// Scoring engine
	engineCfg := fraud.Config{
		BlockThreshold: cfg.BlockThreshold,
		FlagThreshold:  cfg.FlagThreshold,
		Weights: fraud.Weights{
			Amount:   cfg.AmountWeight,
			Velocity: cfg.VelocityWeight,
			Time:     cfg.TimeWeight,
			Pattern:  cfg.PatternWeight,
		},
		HistoryLimit: cfg.HistoryLimit,
	}
	historyClient := history.New(cfg.HistoryAPIAddr, cfg.HistoryTimeout)
	s.engine = fraud.NewEngine(engineCfg, historyClient, pattern, fraud.NewStats(), s.store, s.logger)
	s.engine.WithAnalyzers(
		fraud.NewAmountAnalyzer(fraud.AmountConfig{
			Ceiling:       cfg.AmountCeiling,
			OutlierSigmas: cfg.OutlierSigmas,
			MinHistory:    cfg.MinHistoryForStat,
			SampleSize:    fraud.DefaultAmountConfig().SampleSize,
		}),
		fraud.NewVelocityAnalyzer(fraud.VelocityConfig{
			Window:   cfg.VelocityWindow,
			MaxCount: cfg.VelocityMaxCount,
		}),
		fraud.NewTimeAnalyzer(fraud.DefaultTimeConfig()),
	)
	s.logger.Info("scoring engine ready",
		"block_threshold", cfg.BlockThreshold,
		"flag_threshold", cfg.FlagThreshold,
		"env", cfg.Env,
	)

	// Decision stream
	s.hub = realtime.NewHub(s.logger)
	s.logger.Info("decision streaming enabled")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS. The bank frontends are same-cluster; cross-origin browser
	// calls are not part of the serving path.
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Bearer token extraction (validation happens upstream)
	s.router.Use(auth.Middleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	// Probes and metrics
	s.router.GET("/ready", s.readinessHandler)
	s.router.GET("/healthy", s.healthHandler)
	s.router.GET("/version", s.versionHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket decision stream
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Scoring API. Identity is established by the bank frontend; the
	// guardian requires a token to be present and forwards it upstream.
	var forwarder fraud.LedgerForwarder
	if s.cfg.TransactionsAPIAddr != "" {
		forwarder = ledgerwriter.New(s.cfg.TransactionsAPIAddr, s.cfg.LedgerTimeout)
	}

	handler := fraud.NewHandler(s.engine, s.store, forwarder)
	handler.WithEvents(s.hub)
	if s.cfg.AlertWebhookURL != "" {
		handler.WithEvents(alerts.NewNotifier(s.cfg.AlertWebhookURL, s.cfg.AlertWebhookSecret, s.logger))
		s.logger.Info("block alerts enabled")
	}

	api := s.router.Group("/")
	api.Use(auth.RequireAuth())
	handler.RegisterRoutes(api)
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())
	if !s.healthy.Load() {
		healthy = false
	}

	code := http.StatusOK
	status := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":     status,
		"subsystems": statuses,
		"degraded":   s.engine.DegradedMode(),
	})
}

func (s *Server) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "fraud-guardian",
		"version": s.cfg.Version,
		"env":     s.cfg.Env,
	})
}

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Decision stream hub
	go s.hub.Run(runCtx)

	// DB stats sampling
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.shutdownOTel != nil {
		if err := s.shutdownOTel(ctx); err != nil {
			s.logger.Error("trace exporter shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Engine returns the scoring engine for testing
func (s *Server) Engine() *fraud.Engine {
	return s.engine
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
