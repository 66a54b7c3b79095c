package delivery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_GetOrCreate_UniquePair(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, created, err := store.GetOrCreate(ctx, "sig-1", "sub-1")
			if err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
			if !created {
				t.Error("first call should create")
			}
			if first.Status != core.DeliveryPending {
				t.Errorf("new record status = %s, want pending", first.Status)
			}

			second, created, err := store.GetOrCreate(ctx, "sig-1", "sub-1")
			if err != nil {
				t.Fatalf("second GetOrCreate failed: %v", err)
			}
			if created {
				t.Error("second call should reuse the record")
			}
			if second.ID != first.ID {
				t.Errorf("pair produced two records: %s vs %s", first.ID, second.ID)
			}

			other, created, _ := store.GetOrCreate(ctx, "sig-1", "sub-2")
			if !created || other.ID == first.ID {
				t.Error("different subscriber should get its own record")
			}
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, _, _ := store.GetOrCreate(ctx, "sig-1", "sub-1")

			now := time.Now().UTC()
			d.Status = core.DeliveryDelivered
			d.Attempts = 2
			d.DeliveredAt = now
			if err := store.Update(ctx, d); err != nil {
				t.Fatalf("Update failed: %v", err)
			}

			got, _ := store.Get(ctx, "sig-1", "sub-1")
			if got.Status != core.DeliveryDelivered || got.Attempts != 2 {
				t.Errorf("update not persisted: %+v", got)
			}
			if got.DeliveredAt.IsZero() {
				t.Error("delivered_at lost")
			}

			ghost := &core.Delivery{ID: "missing", Status: core.DeliveryFailed}
			if err := store.Update(ctx, ghost); err != core.ErrDeliveryNotFound {
				t.Errorf("expected DELIVERY_NOT_FOUND, got %v", err)
			}
		})
	}
}

func TestStore_DueForRetry(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			due, _, _ := store.GetOrCreate(ctx, "sig-due", "sub-1")
			due.Status = core.DeliveryFailed
			due.Attempts = 2
			due.NextRetry = now.Add(-time.Minute)
			store.Update(ctx, due)

			notYet, _, _ := store.GetOrCreate(ctx, "sig-later", "sub-1")
			notYet.Status = core.DeliveryFailed
			notYet.Attempts = 1
			notYet.NextRetry = now.Add(time.Hour)
			store.Update(ctx, notYet)

			exhausted, _, _ := store.GetOrCreate(ctx, "sig-done", "sub-1")
			exhausted.Status = core.DeliveryFailed
			exhausted.Attempts = 5
			exhausted.NextRetry = now.Add(-time.Minute)
			store.Update(ctx, exhausted)

			delivered, _, _ := store.GetOrCreate(ctx, "sig-ok", "sub-1")
			delivered.Status = core.DeliveryDelivered
			store.Update(ctx, delivered)

			got, err := store.DueForRetry(ctx, now, 5)
			if err != nil {
				t.Fatalf("DueForRetry failed: %v", err)
			}
			if len(got) != 1 || got[0].SignalID != "sig-due" {
				t.Errorf("got %+v, want only sig-due", got)
			}
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, _, _ := store.GetOrCreate(ctx, "sig-1", "sub-1")
			a.Status = core.DeliveryDelivered
			store.Update(ctx, a)

			b, _, _ := store.GetOrCreate(ctx, "sig-2", "sub-1")
			b.Status = core.DeliveryFailed
			store.Update(ctx, b)

			store.GetOrCreate(ctx, "sig-3", "sub-1")

			stats, err := store.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats[core.DeliveryDelivered] != 1 || stats[core.DeliveryFailed] != 1 || stats[core.DeliveryPending] != 1 {
				t.Errorf("stats = %v", stats)
			}
		})
	}
}
