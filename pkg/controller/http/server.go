package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// config holds internal HTTP server configuration
type config struct {
	addr     string
	token    string
	registry *prometheus.Registry
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithToken sets the bearer token required by the API endpoints. An
// empty token leaves the API open, which is only sensible for local use.
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithMetrics exposes the given registry on /metrics
func WithMetrics(registry *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = registry
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates the API server. The dispatch endpoint validates its
// payload against the embedded OpenAPI document before the trigger use
// case sees it.
func NewServer(
	ctx context.Context,
	triggerUC interfaces.TriggerUseCase,
	runs interfaces.RunLedger,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	validator, err := NewOpenAPIValidator()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", handleHealth)

	if cfg.registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{}))
	}

	// API endpoints
	dispatchHandler := NewDispatchHandler(triggerUC)
	runsHandler := NewRunsHandler(runs)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.token))
		r.Use(validator.Middleware)

		r.Post("/dispatch", dispatchHandler.Handle)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{runID}", runsHandler.Get)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
