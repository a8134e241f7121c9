package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/aptools/internal/api/http"
	"github.com/GriffinCanCode/aptools/internal/api/middleware"
	"github.com/GriffinCanCode/aptools/internal/api/ws"
	"github.com/GriffinCanCode/aptools/internal/domain/badge"
	"github.com/GriffinCanCode/aptools/internal/domain/registry"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/config"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/logging"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
)

const (
	shutdownTimeout = 5 * time.Second
	evictInterval   = time.Minute
)

// Server is the host process: page registry, badge board and HTTP API.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	pages   *registry.Manager
	limiter *middleware.Limiter
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	ctx     context.Context
	stop    context.CancelFunc
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	logger.Info("Initializing aptools host",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()
	pages := registry.NewManager(badge.NewBoard()).
		WithMetrics(metrics).
		WithLogger(logger.Component("registry"))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	var limiter *middleware.Limiter
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limiter = middleware.NewLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})
	}

	handlers := apihttp.NewHandlers(pages)
	wsHandler := ws.NewHandler(pages, logger.Component("ws"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Page connections are long-lived and exempt from rate limiting.
	router.GET(ws.ConnectPath, wsHandler.HandleConnection)

	api := router.Group("/pages")
	if limiter != nil {
		api.Use(limiter.Middleware())
	}
	api.GET("", handlers.ListPages)
	api.GET("/:id/state", handlers.GetState)
	api.GET("/:id/badge", handlers.GetBadge)
	api.POST("/:id/focus", handlers.FocusPage)

	logger.Info("Server initialized successfully")

	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		pages:   pages,
		limiter: limiter,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		ctx:     ctx,
		stop:    stop,
	}
}

// Handler returns the HTTP handler serving the host API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Pages returns the page registry.
func (s *Server) Pages() *registry.Manager {
	return s.pages
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	if s.limiter != nil {
		go s.evict(s.ctx)
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)

	for _, p := range s.pages.List() {
		s.pages.Close(p.ID)
	}

	if err != nil {
		s.logger.Error("Failed to shut down http server", zap.Error(err))
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return s.logger.Close()
}

func (s *Server) evict(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Evict(); n > 0 {
				s.logger.Debug("Evicted idle rate limiters", zap.Int("count", n))
			}
		}
	}
}
