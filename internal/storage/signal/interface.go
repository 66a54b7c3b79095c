package signal

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

// Store defines the interface for signal persistence.
type Store interface {
	// Save persists a signal, assigning an ID when absent.
	Save(ctx context.Context, signal *core.Signal) error

	// GetByID retrieves a signal by its ID.
	GetByID(ctx context.Context, id string) (*core.Signal, error)

	// Update overwrites an existing signal in place.
	Update(ctx context.Context, signal *core.Signal) error

	// List retrieves signals matching the filter, newest first unless
	// the filter orders by confidence.
	List(ctx context.Context, filter ListFilter) ([]*core.Signal, error)

	// Count returns the number of signals matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// ExpireActiveBefore marks every active signal whose expiry time is
	// at or before cutoff as expired and returns how many changed.
	ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int, error)

	// SaveMetadata records the market-condition snapshot for a signal.
	// The snapshot is write-once; a second save for the same signal
	// overwrites the first.
	SaveMetadata(ctx context.Context, meta *core.SignalMetadata) error

	// GetMetadata retrieves the snapshot recorded for a signal.
	GetMetadata(ctx context.Context, signalID string) (*core.SignalMetadata, error)
}

// ListFilter defines criteria for listing signals.
type ListFilter struct {
	Symbol        string
	Symbols       []string
	Type          core.SignalType
	Types         []core.SignalType
	Status        core.SignalStatus
	Source        core.SignalSource
	MinConfidence float64
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int

	// OrderByConfidence sorts by confidence descending, breaking ties
	// by recency. The default order is newest first.
	OrderByConfidence bool
}

func (f ListFilter) matches(sig *core.Signal) bool {
	if f.Symbol != "" && sig.Symbol != f.Symbol {
		return false
	}
	if len(f.Symbols) > 0 && !containsString(f.Symbols, sig.Symbol) {
		return false
	}
	if f.Type != "" && sig.Type != f.Type {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, sig.Type) {
		return false
	}
	if f.Status != "" && sig.Status != f.Status {
		return false
	}
	if f.Source != "" && sig.Source != f.Source {
		return false
	}
	if f.MinConfidence > 0 && sig.Confidence < f.MinConfidence {
		return false
	}
	if !f.From.IsZero() && sig.GeneratedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && sig.GeneratedAt.After(f.To) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []core.SignalType, t core.SignalType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
