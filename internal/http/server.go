// Package http provides the API and metrics servers with their shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/cache"
	"github.com/allisson/lottery/internal/config"
	lotteryHTTP "github.com/allisson/lottery/internal/lottery/http"
	"github.com/allisson/lottery/internal/metrics"
)

const readinessTimeout = 2 * time.Second

// Server is the public API server.
type Server struct {
	db          *sql.DB
	statusCache cache.Cache
	router      *gin.Engine
	server      *http.Server
	logger      *slog.Logger
}

// NewServer creates the API server. The router is built by SetupRouter.
func NewServer(
	db *sql.DB,
	statusCache cache.Cache,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:          db,
		statusCache: statusCache,
		logger:      logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers the middleware chain and every route. ctx bounds the
// background cleanup of the rate limiter.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	registrationHandler *lotteryHTTP.RegistrationHandler,
	metricsProvider *metrics.Provider,
) {
	// Create router and apply middleware
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	// Health and readiness endpoints
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Lottery routes; only registration is rate limited
	api := router.Group("/api/lottery")
	{
		registerChain := []gin.HandlerFunc{}
		if cfg.RateLimitRegisterEnabled {
			registerChain = append(registerChain, RegisterRateLimitMiddleware(
				ctx,
				cfg.RateLimitRegisterRequestsPerSec,
				cfg.RateLimitRegisterBurst,
				s.logger,
			))
		}
		registerChain = append(registerChain, registrationHandler.RegisterHandler)

		api.POST("/register", registerChain...)
		api.GET("/status/:requestId", registrationHandler.StatusHandler)
	}

	s.router = router
}

// GetHandler returns the configured router, for serving through httptest.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness only; it never touches dependencies.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only when the database answers. The status cache
// is reported but does not gate readiness since every cache use has a fallback.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	components := gin.H{}
	ready := true

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		ready = false
	} else {
		components["database"] = "ok"
	}

	if s.statusCache != nil {
		if err := s.statusCache.Ping(ctx); err != nil {
			s.logger.Warn("status cache ping failed", slog.Any("error", err))
			components["cache"] = "error"
		} else {
			components["cache"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
