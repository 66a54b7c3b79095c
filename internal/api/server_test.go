// internal/api/server_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/generator"
	"github.com/tradingpro/pulse/internal/lifecycle"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/scoring"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/delivery"
	"github.com/tradingpro/pulse/internal/storage/market"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
	"github.com/tradingpro/pulse/internal/webhook"
)

func newTestServer(t *testing.T) (*Server, subscriber.Store) {
	t.Helper()

	markets := market.NewMemoryStore()
	articles := article.NewMemoryStore()
	signals := signalstore.NewMemoryStore()
	subscribers := subscriber.NewMemoryStore()
	deliveries := delivery.NewMemoryStore()

	scorer := scoring.New(nil, time.Hour)
	gen := generator.New(markets, articles, signals, scorer, generator.DefaultParams(), nil)
	manager := lifecycle.New(signals, nil, nil)
	engine := webhook.New(deliveries, subscribers, signals, articles, webhook.Options{}, nil, nil)

	deps := Dependencies{
		Signals:     signals,
		Articles:    articles,
		Subscribers: subscribers,
		Deliveries:  deliveries,
		Generator:   gen,
		Lifecycle:   manager,
		Webhooks:    engine,
		Metrics:     metrics.NewRegistry(),
	}

	return NewServer(Config{Host: "localhost", Port: 0}, deps, zap.NewNop()), subscribers
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestServer_SignalsRequiresAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/signals", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestServer_SignalsWithAPIKey(t *testing.T) {
	srv, subscribers := newTestServer(t)

	err := subscribers.Save(context.Background(), &core.Subscriber{
		Name:             "acme",
		APIKey:           "key-1",
		Status:           core.SubscriberActive,
		RateLimitPerHour: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/v1/signals", nil)
	req.Header.Set("X-API-Key", "key-1")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_WebhookStatusRequiresSignature(t *testing.T) {
	srv, subscribers := newTestServer(t)

	err := subscribers.Save(context.Background(), &core.Subscriber{
		Name:   "acme",
		APIKey: "key-1",
		Status: core.SubscriberActive,
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/v1/webhook/status", nil)
	req.Header.Set("X-API-Key", "key-1")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without signature, got %d", w.Code)
	}
}
