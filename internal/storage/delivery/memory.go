package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradingpro/pulse/internal/core"
)

// MemoryStore is an in-memory delivery store.
type MemoryStore struct {
	mu         sync.RWMutex
	deliveries map[string]*core.Delivery
	byPair     map[string]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries: make(map[string]*core.Delivery),
		byPair:     make(map[string]string),
	}
}

func pairKey(signalID, subscriberID string) string {
	return signalID + "|" + subscriberID
}

// GetOrCreate returns the pair's record, creating a pending one when
// none exists.
func (m *MemoryStore) GetOrCreate(ctx context.Context, signalID, subscriberID string) (*core.Delivery, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPair[pairKey(signalID, subscriberID)]; ok {
		copied := *m.deliveries[id]
		return &copied, false, nil
	}

	d := &core.Delivery{
		ID:           uuid.NewString(),
		SignalID:     signalID,
		SubscriberID: subscriberID,
		Status:       core.DeliveryPending,
		CreatedAt:    time.Now().UTC(),
	}
	m.deliveries[d.ID] = d
	m.byPair[pairKey(signalID, subscriberID)] = d.ID

	copied := *d
	return &copied, true, nil
}

// Get retrieves the record for the pair.
func (m *MemoryStore) Get(ctx context.Context, signalID, subscriberID string) (*core.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPair[pairKey(signalID, subscriberID)]
	if !ok {
		return nil, core.ErrDeliveryNotFound
	}
	copied := *m.deliveries[id]
	return &copied, nil
}

// GetByID retrieves a record by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deliveries[id]
	if !ok {
		return nil, core.ErrDeliveryNotFound
	}
	copied := *d
	return &copied, nil
}

// Update overwrites an existing record.
func (m *MemoryStore) Update(ctx context.Context, d *core.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deliveries[d.ID]; !ok {
		return core.ErrDeliveryNotFound
	}
	copied := *d
	m.deliveries[d.ID] = &copied
	return nil
}

// DueForRetry returns failed deliveries eligible for another pass.
func (m *MemoryStore) DueForRetry(ctx context.Context, now time.Time, maxAttempts int) ([]*core.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Delivery
	for _, d := range m.deliveries {
		if d.Status != core.DeliveryFailed {
			continue
		}
		if d.Attempts >= maxAttempts {
			continue
		}
		if !d.NextRetry.IsZero() && d.NextRetry.After(now) {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Stats returns counts grouped by status.
func (m *MemoryStore) Stats(ctx context.Context) (map[core.DeliveryStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[core.DeliveryStatus]int)
	for _, d := range m.deliveries {
		stats[d.Status]++
	}
	return stats, nil
}
