package subscriber

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// Store defines the interface for subscriber persistence.
type Store interface {
	// Save persists a subscriber, assigning an ID when absent.
	Save(ctx context.Context, sub *core.Subscriber) error

	// GetByID retrieves a subscriber by its ID.
	GetByID(ctx context.Context, id string) (*core.Subscriber, error)

	// GetByAPIKey retrieves a subscriber by its API key.
	GetByAPIKey(ctx context.Context, apiKey string) (*core.Subscriber, error)

	// Update overwrites an existing subscriber in place.
	Update(ctx context.Context, sub *core.Subscriber) error

	// CountRequest atomically applies the rate-limit window: the
	// counter resets after an idle period longer than window, the call
	// fails with ErrRateLimited once the counter reaches the limit,
	// and otherwise the counter increments and the access time
	// advances. Returns the subscriber as persisted.
	CountRequest(ctx context.Context, id string, window time.Duration) (*core.Subscriber, error)

	// ListActiveWithWebhook returns active subscribers that have a
	// webhook URL configured.
	ListActiveWithWebhook(ctx context.Context) ([]*core.Subscriber, error)
}
