package article

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// Store defines the interface for article persistence.
type Store interface {
	// Save upserts an article by ID.
	Save(ctx context.Context, article *core.Article) error

	// GetByID retrieves an article by its ID.
	GetByID(ctx context.Context, id string) (*core.Article, error)

	// FindBySymbol returns the newest articles since the cutoff whose
	// title, content or summary contains the symbol as a case-sensitive
	// substring, newest first, capped at limit.
	FindBySymbol(ctx context.Context, symbol string, since time.Time, limit int) ([]*core.Article, error)
}
