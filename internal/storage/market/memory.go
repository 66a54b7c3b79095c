package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// MemoryStore is an in-memory market data store.
type MemoryStore struct {
	mu      sync.RWMutex
	tickers map[string]core.Ticker
	quotes  map[string][]core.Quote
	bars    map[string]core.Bar // keyed by symbol|timeframe|barTime
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickers: make(map[string]core.Ticker),
		quotes:  make(map[string][]core.Quote),
		bars:    make(map[string]core.Bar),
	}
}

// SaveTicker registers or replaces a ticker identity.
func (m *MemoryStore) SaveTicker(ctx context.Context, ticker core.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[ticker.Symbol] = ticker
	return nil
}

// GetTicker retrieves a ticker by symbol.
func (m *MemoryStore) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickers[symbol]
	if !ok {
		return nil, core.ErrTickerNotFound
	}
	return &t, nil
}

// SaveQuote appends a quote snapshot with derived fields recomputed.
func (m *MemoryStore) SaveQuote(ctx context.Context, quote core.Quote) error {
	quote.Recompute()
	if quote.Timestamp.IsZero() {
		quote.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[quote.Symbol] = append(m.quotes[quote.Symbol], quote)
	return nil
}

// LatestQuote returns the newest snapshot for a symbol.
func (m *MemoryStore) LatestQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quotes := m.quotes[symbol]
	if len(quotes) == 0 {
		return nil, core.ErrNoData
	}

	latest := quotes[0]
	for _, q := range quotes[1:] {
		if q.Timestamp.After(latest.Timestamp) {
			latest = q
		}
	}
	return &latest, nil
}

// QuotesSince returns snapshots at or after the cutoff, oldest first.
func (m *MemoryStore) QuotesSince(ctx context.Context, symbol string, since time.Time) ([]core.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Quote
	for _, q := range m.quotes[symbol] {
		if !q.Timestamp.Before(since) {
			result = append(result, q)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func barKey(symbol, timeframe string, barTime time.Time) string {
	return fmt.Sprintf("%s|%s|%d", symbol, timeframe, barTime.UnixNano())
}

// UpsertBar overwrites any existing bar for the same triple.
func (m *MemoryStore) UpsertBar(ctx context.Context, bar core.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[barKey(bar.Symbol, bar.Timeframe, bar.BarTime)] = bar
	return nil
}

// BarsSince returns bars at or after the cutoff, oldest first.
func (m *MemoryStore) BarsSince(ctx context.Context, symbol, timeframe string, since time.Time) ([]core.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Bar
	for _, b := range m.bars {
		if b.Symbol != symbol || b.Timeframe != timeframe {
			continue
		}
		if b.BarTime.Before(since) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BarTime.Before(result[j].BarTime)
	})
	return result, nil
}
