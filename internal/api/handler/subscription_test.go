// internal/api/handler/subscription_test.go
package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
)

func newSubscriptionFixture(t *testing.T) (*SubscriptionHandler, *core.Subscriber, subscriber.Store) {
	t.Helper()
	store := subscriber.NewMemoryStore()
	sub := &core.Subscriber{
		Name:              "acme",
		APIKey:            "key-1",
		Status:            core.SubscriberActive,
		SubscribedTickers: []string{"AAPL"},
		MinConfidence:     0.5,
		SignalTypes:       []core.SignalType{core.SignalBuy},
		WebhookURL:        "https://example.com/hook",
		RateLimitPerHour:  1000,
		RequestCount:      7,
		LastAccessed:      time.Now(),
	}
	if err := store.Save(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return NewSubscriptionHandler(store), sub, store
}

func TestSubscriptionHandler_Get(t *testing.T) {
	h, sub, _ := newSubscriptionFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/subscription", "", sub))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	data := decodeData(t, w)
	if data["name"] != "acme" || data["webhook_url"] != "https://example.com/hook" {
		t.Errorf("unexpected settings: %+v", data)
	}
	if data["request_count"] != float64(7) {
		t.Errorf("expected request count 7, got %v", data["request_count"])
	}
	if data["last_accessed"] == nil {
		t.Error("expected last_accessed to be set")
	}
}

func TestSubscriptionHandler_Update(t *testing.T) {
	h, sub, store := newSubscriptionFixture(t)

	body := `{
		"subscribed_tickers": ["msft", "TSLA"],
		"min_confidence_threshold": 0.7,
		"signal_types": ["buy", "strong_buy"],
		"webhook_url": "https://example.com/v2"
	}`

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/subscription", body, sub))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored, err := store.GetByID(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.MinConfidence != 0.7 || stored.WebhookURL != "https://example.com/v2" {
		t.Errorf("update not persisted: %+v", stored)
	}
	if len(stored.SubscribedTickers) != 2 || stored.SubscribedTickers[0] != "MSFT" {
		t.Errorf("expected uppercased tickers, got %v", stored.SubscribedTickers)
	}
	if len(stored.SignalTypes) != 2 || stored.SignalTypes[1] != core.SignalStrongBuy {
		t.Errorf("unexpected signal types: %v", stored.SignalTypes)
	}
}

func TestSubscriptionHandler_PartialUpdate(t *testing.T) {
	h, sub, store := newSubscriptionFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/subscription", `{"min_confidence_threshold": 0.9}`, sub))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	stored, _ := store.GetByID(context.Background(), sub.ID)
	if stored.MinConfidence != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", stored.MinConfidence)
	}
	if stored.WebhookURL != "https://example.com/hook" {
		t.Errorf("expected untouched webhook url, got %s", stored.WebhookURL)
	}
	if len(stored.SubscribedTickers) != 1 {
		t.Errorf("expected untouched tickers, got %v", stored.SubscribedTickers)
	}
}

func TestSubscriptionHandler_InvalidThreshold(t *testing.T) {
	h, sub, store := newSubscriptionFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/subscription", `{"min_confidence_threshold": 1.5}`, sub))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	stored, _ := store.GetByID(context.Background(), sub.ID)
	if stored.MinConfidence != 0.5 {
		t.Errorf("threshold should be unchanged, got %v", stored.MinConfidence)
	}
}

func TestSubscriptionHandler_InvalidSignalType(t *testing.T) {
	h, sub, _ := newSubscriptionFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/subscription", `{"signal_types": ["buy", "moon"]}`, sub))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubscriptionHandler_InvalidJSON(t *testing.T) {
	h, sub, _ := newSubscriptionFixture(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/subscription", `{not json`, sub))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
