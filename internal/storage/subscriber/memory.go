package subscriber

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradingpro/pulse/internal/core"
)

// MemoryStore is an in-memory subscriber store.
type MemoryStore struct {
	mu          sync.RWMutex
	subscribers map[string]*core.Subscriber
	byAPIKey    map[string]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[string]*core.Subscriber),
		byAPIKey:    make(map[string]string),
	}
}

// Save persists a subscriber, assigning an ID when absent.
func (m *MemoryStore) Save(ctx context.Context, sub *core.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if prev, ok := m.subscribers[sub.ID]; ok {
		delete(m.byAPIKey, prev.APIKey)
	}
	copied := cloneSubscriber(sub)
	m.subscribers[sub.ID] = copied
	m.byAPIKey[sub.APIKey] = sub.ID
	return nil
}

// GetByID retrieves a subscriber by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return nil, core.ErrSubscriberNotFound
	}
	return cloneSubscriber(sub), nil
}

// GetByAPIKey retrieves a subscriber by API key.
func (m *MemoryStore) GetByAPIKey(ctx context.Context, apiKey string) (*core.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAPIKey[apiKey]
	if !ok {
		return nil, core.ErrSubscriberNotFound
	}
	return cloneSubscriber(m.subscribers[id]), nil
}

// Update overwrites an existing subscriber.
func (m *MemoryStore) Update(ctx context.Context, sub *core.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.subscribers[sub.ID]
	if !ok {
		return core.ErrSubscriberNotFound
	}
	delete(m.byAPIKey, prev.APIKey)
	m.subscribers[sub.ID] = cloneSubscriber(sub)
	m.byAPIKey[sub.APIKey] = sub.ID
	return nil
}

// CountRequest applies the rate-limit window under the store lock, so
// concurrent requests for the same key never lose an increment.
func (m *MemoryStore) CountRequest(ctx context.Context, id string, window time.Duration) (*core.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return nil, core.ErrSubscriberNotFound
	}

	now := time.Now()
	if !sub.LastAccessed.IsZero() && now.Sub(sub.LastAccessed) > window {
		sub.RequestCount = 0
	}
	if sub.RequestCount >= sub.RateLimitPerHour {
		return nil, core.ErrRateLimited
	}
	sub.RequestCount++
	sub.LastAccessed = now
	return cloneSubscriber(sub), nil
}

// ListActiveWithWebhook returns active subscribers with a webhook URL.
func (m *MemoryStore) ListActiveWithWebhook(ctx context.Context) ([]*core.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Subscriber
	for _, sub := range m.subscribers {
		if sub.Status == core.SubscriberActive && sub.WebhookURL != "" {
			result = append(result, cloneSubscriber(sub))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func cloneSubscriber(sub *core.Subscriber) *core.Subscriber {
	copied := *sub
	if sub.SubscribedTickers != nil {
		copied.SubscribedTickers = append([]string(nil), sub.SubscribedTickers...)
	}
	if sub.SignalTypes != nil {
		copied.SignalTypes = append([]core.SignalType(nil), sub.SignalTypes...)
	}
	return &copied
}
