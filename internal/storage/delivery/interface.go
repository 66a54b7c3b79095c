package delivery

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// Store defines the interface for webhook delivery tracking.
// At most one record exists per (signal, subscriber) pair.
type Store interface {
	// GetOrCreate returns the existing record for the pair, creating a
	// pending one when none exists. The second return reports whether
	// the record was created by this call.
	GetOrCreate(ctx context.Context, signalID, subscriberID string) (*core.Delivery, bool, error)

	// Get retrieves the record for the pair.
	Get(ctx context.Context, signalID, subscriberID string) (*core.Delivery, error)

	// GetByID retrieves a record by its ID.
	GetByID(ctx context.Context, id string) (*core.Delivery, error)

	// Update overwrites an existing record in place.
	Update(ctx context.Context, d *core.Delivery) error

	// DueForRetry returns failed deliveries whose next retry time has
	// passed and which still have attempts left.
	DueForRetry(ctx context.Context, now time.Time, maxAttempts int) ([]*core.Delivery, error)

	// Stats returns delivery counts grouped by status.
	Stats(ctx context.Context) (map[core.DeliveryStatus]int, error)
}
