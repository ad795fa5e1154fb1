package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tokenauth/backend/internal/config"
	"tokenauth/backend/internal/metrics"
	authusecase "tokenauth/backend/internal/usecase/auth"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Deps groups the collaborators the HTTP server needs.
type Deps struct {
	AuthService *authusecase.Service
	Logger      logrus.FieldLogger
	// Metrics and Gatherer are optional; /metrics is only mounted when Gatherer is set.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer   *http.Server
	router       chi.Router
	authService  *authusecase.Service
	logger       logrus.FieldLogger
	metrics      *metrics.Collector
	gatherer     prometheus.Gatherer
	loginLimiter *clientLimiter
	addr         string
}

// NewServer constructs a new Server with configured dependencies.
func NewServer(cfg config.Config, deps Deps) *Server {
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	perSecond := rate.Inf
	if cfg.LoginRatePerMin > 0 {
		perSecond = rate.Limit(float64(cfg.LoginRatePerMin) / 60.0)
	}

	srv := &Server{
		router:       chi.NewRouter(),
		authService:  deps.AuthService,
		logger:       logger,
		metrics:      deps.Metrics,
		gatherer:     deps.Gatherer,
		loginLimiter: newClientLimiter(perSecond, cfg.LoginRateBurst, 10*time.Minute),
		addr:         addr,
	}
	srv.httpServer = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}

	srv.router.Use(
		withRequestID,
		srv.withLogging,
		chimiddleware.Recoverer,
		withProcessTime,
		withCORS(cfg.AllowedOrigins),
	)
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the configured address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.loginLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}
