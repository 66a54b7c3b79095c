package article

import (
	"context"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

func TestMemoryStore_SaveAssignsID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := &core.Article{Title: "AAPL hits record high", ScrapedAt: time.Now()}
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if a.ID == "" {
		t.Error("expected assigned ID")
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != a.Title {
		t.Errorf("wrong title: %s", got.Title)
	}
}

func TestMemoryStore_GetByID_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetByID(context.Background(), "missing")
	if err != core.ErrArticleNotFound {
		t.Errorf("expected ARTICLE_NOT_FOUND, got %v", err)
	}
}

func TestMemoryStore_FindBySymbol_CaseSensitive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, &core.Article{Title: "AAPL earnings beat", ScrapedAt: now})
	store.Save(ctx, &core.Article{Title: "apple rumors", ScrapedAt: now})
	store.Save(ctx, &core.Article{Content: "analysts on AAPL guidance", ScrapedAt: now})

	found, err := store.FindBySymbol(ctx, "AAPL", now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("FindBySymbol failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 matches (verbatim only), got %d", len(found))
	}
}

func TestMemoryStore_FindBySymbol_CutoffAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, &core.Article{Title: "AAPL old", ScrapedAt: now.AddDate(0, 0, -10)})
	for i := 0; i < 12; i++ {
		store.Save(ctx, &core.Article{
			Title:     "AAPL update",
			ScrapedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	found, _ := store.FindBySymbol(ctx, "AAPL", now.AddDate(0, 0, -7), 10)
	if len(found) != 10 {
		t.Errorf("expected limit of 10, got %d", len(found))
	}

	// newest first
	for i := 1; i < len(found); i++ {
		if found[i].ScrapedAt.After(found[i-1].ScrapedAt) {
			t.Error("results not ordered newest first")
			break
		}
	}
}
