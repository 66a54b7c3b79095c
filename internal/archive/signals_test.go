package archive

import (
	"context"
	"testing"
	"time"

	"github.com/tradingpro/pulse/internal/core"
)

func TestSignalArchiver_RoundTrip(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	archiver := NewSignalArchiver(fs)
	ctx := context.Background()

	sig := &core.Signal{
		ID:          "sig-1",
		Symbol:      "AAPL",
		Type:        core.SignalBuy,
		Confidence:  0.72,
		Source:      core.SourceCombined,
		Status:      core.StatusExpired,
		GeneratedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	meta := &core.SignalMetadata{SignalID: "sig-1", RecentNewsCount: 4}

	if err := archiver.Archive(ctx, sig, meta); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	record, err := archiver.Load(ctx, sig)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if record.Signal.Symbol != "AAPL" || record.Signal.Confidence != 0.72 {
		t.Errorf("signal round trip mismatch: %+v", record.Signal)
	}
	if record.Metadata == nil || record.Metadata.RecentNewsCount != 4 {
		t.Errorf("metadata round trip mismatch: %+v", record.Metadata)
	}

	paths, err := archiver.ListDay(ctx, "2025/06/15")
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("expected 1 archived record, got %d", len(paths))
	}
}

func TestSignalArchiver_NoMetadata(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	archiver := NewSignalArchiver(fs)
	ctx := context.Background()

	sig := &core.Signal{
		ID:          "sig-2",
		Symbol:      "MSFT",
		Type:        core.SignalHold,
		GeneratedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := archiver.Archive(ctx, sig, nil); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	record, err := archiver.Load(ctx, sig)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if record.Metadata != nil {
		t.Error("expected nil metadata in record")
	}
}
