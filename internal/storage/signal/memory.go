package signal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradingpro/pulse/internal/core"
)

// MemoryStore is an in-memory signal store.
type MemoryStore struct {
	mu       sync.RWMutex
	signals  map[string]*core.Signal
	metadata map[string]*core.SignalMetadata
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:  make(map[string]*core.Signal),
		metadata: make(map[string]*core.SignalMetadata),
	}
}

// Save persists a signal, assigning an ID when absent.
func (m *MemoryStore) Save(ctx context.Context, signal *core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}
	copied := cloneSignal(signal)
	m.signals[signal.ID] = copied
	return nil
}

// GetByID retrieves a signal by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sig, ok := m.signals[id]
	if !ok {
		return nil, core.ErrSignalNotFound
	}
	return cloneSignal(sig), nil
}

// Update overwrites an existing signal.
func (m *MemoryStore) Update(ctx context.Context, signal *core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.signals[signal.ID]; !ok {
		return core.ErrSignalNotFound
	}
	m.signals[signal.ID] = cloneSignal(signal)
	return nil
}

// List returns signals matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Signal
	for _, sig := range m.signals {
		if filter.matches(sig) {
			result = append(result, cloneSignal(sig))
		}
	}

	if filter.OrderByConfidence {
		sort.Slice(result, func(i, j int) bool {
			if result[i].Confidence != result[j].Confidence {
				return result[i].Confidence > result[j].Confidence
			}
			return result[i].GeneratedAt.After(result[j].GeneratedAt)
		})
	} else {
		sort.Slice(result, func(i, j int) bool {
			return result[i].GeneratedAt.After(result[j].GeneratedAt)
		})
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*core.Signal{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the count of matching signals.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sig := range m.signals {
		if filter.matches(sig) {
			count++
		}
	}
	return count, nil
}

// ExpireActiveBefore marks stale active signals expired.
func (m *MemoryStore) ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, sig := range m.signals {
		if sig.Status != core.StatusActive {
			continue
		}
		if sig.ExpiryTime.IsZero() || sig.ExpiryTime.After(cutoff) {
			continue
		}
		sig.Status = core.StatusExpired
		count++
	}
	return count, nil
}

// SaveMetadata records the market snapshot for a signal.
func (m *MemoryStore) SaveMetadata(ctx context.Context, meta *core.SignalMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *meta
	m.metadata[meta.SignalID] = &copied
	return nil
}

// GetMetadata retrieves the snapshot for a signal.
func (m *MemoryStore) GetMetadata(ctx context.Context, signalID string) (*core.SignalMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.metadata[signalID]
	if !ok {
		return nil, core.ErrSignalNotFound
	}
	copied := *meta
	return &copied, nil
}

func cloneSignal(sig *core.Signal) *core.Signal {
	copied := *sig
	if sig.MarketContext != nil {
		copied.MarketContext = make(map[string]any, len(sig.MarketContext))
		for k, v := range sig.MarketContext {
			copied.MarketContext[k] = v
		}
	}
	if sig.RelatedArticleIDs != nil {
		copied.RelatedArticleIDs = append([]string(nil), sig.RelatedArticleIDs...)
	}
	return &copied
}
