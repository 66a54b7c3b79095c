package market

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// Store defines the interface for market data persistence.
type Store interface {
	// SaveTicker registers a ticker identity.
	SaveTicker(ctx context.Context, ticker core.Ticker) error

	// GetTicker retrieves a ticker by symbol.
	GetTicker(ctx context.Context, symbol string) (*core.Ticker, error)

	// SaveQuote stores a quote snapshot, recomputing derived fields.
	SaveQuote(ctx context.Context, quote core.Quote) error

	// LatestQuote returns the most recent snapshot for a ticker.
	LatestQuote(ctx context.Context, symbol string) (*core.Quote, error)

	// QuotesSince returns snapshots at or after the cutoff, oldest first.
	QuotesSince(ctx context.Context, symbol string, since time.Time) ([]core.Quote, error)

	// UpsertBar stores a bar; re-ingesting the same
	// (symbol, timeframe, bar time) triple overwrites.
	UpsertBar(ctx context.Context, bar core.Bar) error

	// BarsSince returns bars at or after the cutoff, oldest first.
	BarsSince(ctx context.Context, symbol, timeframe string, since time.Time) ([]core.Bar, error)
}
