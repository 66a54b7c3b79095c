// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/api/handler"
	"github.com/tradingpro/pulse/internal/api/middleware"
	"github.com/tradingpro/pulse/internal/generator"
	"github.com/tradingpro/pulse/internal/lifecycle"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/delivery"
	"github.com/tradingpro/pulse/internal/storage/signal"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
	"github.com/tradingpro/pulse/internal/webhook"
)

// Server is the subscriber-facing HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
}

// Dependencies carries the collaborators the API routes are built on.
type Dependencies struct {
	Signals     signal.Store
	Articles    article.Store
	Subscribers subscriber.Store
	Deliveries  delivery.Store
	Generator   *generator.Generator
	Lifecycle   *lifecycle.Manager
	Webhooks    *webhook.Engine
	Metrics     *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(deps)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Dependencies) {
	auth := middleware.SubscriberAuth(deps.Subscribers, s.logger, deps.Metrics)
	signed := middleware.WebhookSignatureAuth(deps.Subscribers)

	instrument := func(h http.Handler) http.Handler { return h }
	if deps.Metrics != nil {
		instrument = metrics.HTTPMiddleware(deps.Metrics)
	}

	signals := handler.NewSignalsHandler(deps.Signals, deps.Articles, deps.Generator, s.logger)
	subscription := handler.NewSubscriptionHandler(deps.Subscribers)
	deliveryStatus := handler.NewDeliveryStatusHandler(deps.Deliveries)
	status := handler.NewStatusHandler(deps.Lifecycle, deps.Webhooks)

	s.mux.Handle("/api/v1/signals", instrument(auth(signals)))
	s.mux.Handle("/api/v1/subscription", instrument(auth(subscription)))
	s.mux.Handle("/api/v1/webhook/status", instrument(signed(deliveryStatus)))
	s.mux.Handle("/api/v1/status", instrument(auth(status)))

	s.mux.HandleFunc("/health", s.handleHealth)

	if deps.Metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
