// internal/api/handler/status_test.go
package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/lifecycle"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/delivery"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
	"github.com/tradingpro/pulse/internal/webhook"
)

func newStatusFixture(t *testing.T) (*StatusHandler, *signalstore.MemoryStore, *delivery.MemoryStore) {
	t.Helper()
	signals := signalstore.NewMemoryStore()
	deliveries := delivery.NewMemoryStore()
	manager := lifecycle.New(signals, nil, nil)
	engine := webhook.New(deliveries, subscriber.NewMemoryStore(), signals,
		article.NewMemoryStore(), webhook.Options{}, nil, nil)
	return NewStatusHandler(manager, engine), signals, deliveries
}

func TestStatusHandler_Operational(t *testing.T) {
	h, _, _ := newStatusFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/status", "", testSubscriber()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	data := decodeData(t, w)
	if data["status"] != "operational" {
		t.Errorf("expected operational status, got %v", data["status"])
	}
	sub := data["subscriber"].(map[string]any)
	if sub["name"] != "acme" {
		t.Errorf("unexpected subscriber block: %+v", sub)
	}
	endpoints := data["endpoints"].(map[string]any)
	if endpoints["signals"] != "/api/v1/signals" {
		t.Errorf("unexpected endpoints block: %+v", endpoints)
	}
}

func TestStatusHandler_IncludesStats(t *testing.T) {
	h, signals, deliveries := newStatusFixture(t)
	ctx := context.Background()

	sig := &core.Signal{
		Symbol: "AAPL", Type: core.SignalBuy, Confidence: 0.8,
		Status: core.StatusExecuted, GeneratedAt: time.Now(),
		PerformanceScore: 0.1, PerformanceSet: true,
	}
	if err := signals.Save(ctx, sig); err != nil {
		t.Fatal(err)
	}

	d, _, err := deliveries.GetOrCreate(ctx, "sig-1", "sub-1")
	if err != nil {
		t.Fatal(err)
	}
	d.Status = core.DeliveryDelivered
	if err := deliveries.Update(ctx, d); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/status", "", testSubscriber()))

	data := decodeData(t, w)
	perf := data["signal_performance"].(map[string]any)
	if perf["total_signals"] != float64(1) {
		t.Errorf("unexpected performance stats: %+v", perf)
	}
	del := data["webhook_deliveries"].(map[string]any)
	if del["delivered"] != float64(1) || del["success_rate"] != float64(100) {
		t.Errorf("unexpected delivery stats: %+v", del)
	}
}

func TestStatusHandler_MethodNotAllowed(t *testing.T) {
	h, _, _ := newStatusFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/status", `{}`, testSubscriber()))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
