package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

func TestMemoryStore_SaveAndLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{
		Name:   "acme",
		APIKey: "key-1",
		Status: core.SubscriberActive,
	}
	if err := store.Save(ctx, sub); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if sub.ID == "" {
		t.Fatal("Save did not assign an ID")
	}

	byID, err := store.GetByID(ctx, sub.ID)
	if err != nil || byID.Name != "acme" {
		t.Fatalf("GetByID: %v %v", byID, err)
	}

	byKey, err := store.GetByAPIKey(ctx, "key-1")
	if err != nil || byKey.ID != sub.ID {
		t.Fatalf("GetByAPIKey: %v %v", byKey, err)
	}

	if _, err := store.GetByAPIKey(ctx, "missing"); err != core.ErrSubscriberNotFound {
		t.Errorf("expected SUBSCRIBER_NOT_FOUND, got %v", err)
	}
}

func TestMemoryStore_Update_ReindexesAPIKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{Name: "acme", APIKey: "old-key", Status: core.SubscriberActive}
	store.Save(ctx, sub)

	sub.APIKey = "new-key"
	if err := store.Update(ctx, sub); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := store.GetByAPIKey(ctx, "old-key"); err != core.ErrSubscriberNotFound {
		t.Errorf("old key should no longer resolve, got %v", err)
	}
	got, err := store.GetByAPIKey(ctx, "new-key")
	if err != nil || got.ID != sub.ID {
		t.Errorf("new key lookup: %v %v", got, err)
	}
}

func TestMemoryStore_ListActiveWithWebhook(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, &core.Subscriber{
		Name: "with-hook", APIKey: "k1", Status: core.SubscriberActive,
		WebhookURL: "https://example.com/hook", CreatedAt: now,
	})
	store.Save(ctx, &core.Subscriber{
		Name: "no-hook", APIKey: "k2", Status: core.SubscriberActive, CreatedAt: now,
	})
	store.Save(ctx, &core.Subscriber{
		Name: "suspended", APIKey: "k3", Status: core.SubscriberSuspended,
		WebhookURL: "https://example.com/hook2", CreatedAt: now,
	})

	got, err := store.ListActiveWithWebhook(ctx)
	if err != nil {
		t.Fatalf("ListActiveWithWebhook failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "with-hook" {
		t.Errorf("got %+v, want only with-hook", got)
	}
}

func TestMemoryStore_ReadIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{
		Name: "acme", APIKey: "k1", Status: core.SubscriberActive,
		SubscribedTickers: []string{"AAPL"},
	}
	store.Save(ctx, sub)

	got, _ := store.GetByID(ctx, sub.ID)
	got.SubscribedTickers[0] = "MSFT"

	again, _ := store.GetByID(ctx, sub.ID)
	if again.SubscribedTickers[0] != "AAPL" {
		t.Error("mutating a returned subscriber leaked into the store")
	}
}

func TestMemoryStore_CountRequest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{
		Name: "acme", APIKey: "k1", Status: core.SubscriberActive,
		RateLimitPerHour: 2,
	}
	store.Save(ctx, sub)

	for i := 1; i <= 2; i++ {
		got, err := store.CountRequest(ctx, sub.ID, time.Hour)
		if err != nil {
			t.Fatalf("CountRequest %d failed: %v", i, err)
		}
		if got.RequestCount != i {
			t.Errorf("request count = %d, want %d", got.RequestCount, i)
		}
		if got.LastAccessed.IsZero() {
			t.Error("last accessed not stamped")
		}
	}

	if _, err := store.CountRequest(ctx, sub.ID, time.Hour); !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("expected RATE_LIMITED at the cap, got %v", err)
	}
}

func TestMemoryStore_CountRequest_IdleWindowReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{
		Name: "acme", APIKey: "k1", Status: core.SubscriberActive,
		RateLimitPerHour: 2,
		RequestCount:     2,
		LastAccessed:     time.Now().Add(-2 * time.Hour),
	}
	store.Save(ctx, sub)

	got, err := store.CountRequest(ctx, sub.ID, time.Hour)
	if err != nil {
		t.Fatalf("CountRequest failed: %v", err)
	}
	if got.RequestCount != 1 {
		t.Errorf("request count = %d, want 1 after idle reset", got.RequestCount)
	}
}

func TestMemoryStore_CountRequest_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &core.Subscriber{
		Name: "acme", APIKey: "k1", Status: core.SubscriberActive,
		RateLimitPerHour: 1000,
	}
	store.Save(ctx, sub)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CountRequest(ctx, sub.ID, time.Hour); err != nil {
				t.Errorf("CountRequest failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.GetByID(ctx, sub.ID)
	if got.RequestCount != 50 {
		t.Errorf("request count = %d, want 50 (no lost increments)", got.RequestCount)
	}
}
