package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradingpro/pulse/internal/core"
)

// SignalRecord is the archived form of one signal, paired with its
// metadata snapshot when one was recorded.
type SignalRecord struct {
	Signal   *core.Signal         `json:"signal"`
	Metadata *core.SignalMetadata `json:"metadata,omitempty"`
}

// SignalArchiver writes retired signals into a Storage backend, keyed
// by generation date so the archive can be pruned by day.
type SignalArchiver struct {
	storage Storage
}

// NewSignalArchiver creates a signal archiver on top of a backend.
func NewSignalArchiver(storage Storage) *SignalArchiver {
	return &SignalArchiver{storage: storage}
}

// Archive writes one signal record. Re-archiving the same signal
// overwrites the previous record.
func (a *SignalArchiver) Archive(ctx context.Context, sig *core.Signal, meta *core.SignalMetadata) error {
	data, err := json.MarshalIndent(SignalRecord{Signal: sig, Metadata: meta}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signal %s: %w", sig.ID, err)
	}
	return a.storage.Write(ctx, signalPath(sig), data)
}

// Load reads one archived record back.
func (a *SignalArchiver) Load(ctx context.Context, sig *core.Signal) (*SignalRecord, error) {
	data, err := a.storage.Read(ctx, signalPath(sig))
	if err != nil {
		return nil, err
	}
	var record SignalRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding signal %s: %w", sig.ID, err)
	}
	return &record, nil
}

// ListDay returns the archive paths for signals generated on the given
// day (format 2006/01/02).
func (a *SignalArchiver) ListDay(ctx context.Context, day string) ([]string, error) {
	return a.storage.List(ctx, "signals/"+day)
}

func signalPath(sig *core.Signal) string {
	return fmt.Sprintf("signals/%s/%s.json", sig.GeneratedAt.UTC().Format("2006/01/02"), sig.ID)
}
