// Package lifecycle manages signals after generation: expiry,
// execution tracking, performance measurement and archival.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/archive"
	"github.com/tradingpro/pulse/internal/core"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
)

// Manager runs lifecycle operations over the signal store.
type Manager struct {
	signals  signalstore.Store
	archiver *archive.SignalArchiver // nil disables archival
	logger   *zap.Logger

	now func() time.Time
}

// New creates a lifecycle manager. The archiver may be nil.
func New(signals signalstore.Store, archiver *archive.SignalArchiver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		signals:  signals,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// ExpireOldSignals marks every active signal past its expiry time as
// expired and returns how many changed. Signals leaving the active
// state are written to the archive when one is configured. The sweep
// is idempotent: a repeat run with no newly stale signals reports 0.
func (m *Manager) ExpireOldSignals(ctx context.Context) (int, error) {
	now := m.now().UTC()

	if m.archiver != nil {
		if err := m.archiveStale(ctx, now); err != nil {
			m.logger.Warn("archiving stale signals failed", zap.Error(err))
		}
	}

	count, err := m.signals.ExpireActiveBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.logger.Info("expired signals", zap.Int("count", count))
	}
	return count, nil
}

func (m *Manager) archiveStale(ctx context.Context, now time.Time) error {
	active, err := m.signals.List(ctx, signalstore.ListFilter{Status: core.StatusActive})
	if err != nil {
		return err
	}
	for _, sig := range active {
		if !sig.Expired(now) {
			continue
		}
		meta, err := m.signals.GetMetadata(ctx, sig.ID)
		if err != nil {
			meta = nil
		}
		if err := m.archiver.Archive(ctx, sig, meta); err != nil {
			m.logger.Warn("archive write failed",
				zap.String("signal_id", sig.ID), zap.Error(err))
		}
	}
	return nil
}

// ActiveSignals returns active signals, optionally filtered by ticker,
// newest first.
func (m *Manager) ActiveSignals(ctx context.Context, symbol string) ([]*core.Signal, error) {
	return m.signals.List(ctx, signalstore.ListFilter{
		Symbol: symbol,
		Status: core.StatusActive,
	})
}

// SignalsByConfidence returns active signals at or above the
// threshold, highest confidence first with recency as tiebreaker.
func (m *Manager) SignalsByConfidence(ctx context.Context, minConfidence float64) ([]*core.Signal, error) {
	return m.signals.List(ctx, signalstore.ListFilter{
		Status:            core.StatusActive,
		MinConfidence:     minConfidence,
		OrderByConfidence: true,
	})
}

// SignalsByType returns active signals of one type, newest first.
func (m *Manager) SignalsByType(ctx context.Context, t core.SignalType) ([]*core.Signal, error) {
	return m.signals.List(ctx, signalstore.ListFilter{
		Status: core.StatusActive,
		Type:   t,
	})
}

// MarkExecuted records the execution of a signal at the given price
// and computes its performance when a target price is set.
func (m *Manager) MarkExecuted(ctx context.Context, id string, price float64) (*core.Signal, error) {
	sig, err := m.signals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sig.Status = core.StatusExecuted
	sig.ExecutionPrice = price
	sig.ExecutionTime = m.now().UTC()
	if score, ok := CalculatePerformance(sig); ok {
		sig.PerformanceScore = score
		sig.PerformanceSet = true
	}

	if err := m.signals.Update(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// CalculatePerformance computes the relative performance of an
// executed signal: buy-family signals gain when the target sits above
// the execution price, sell-family signals the reverse. Returns false
// when either price is missing.
func CalculatePerformance(sig *core.Signal) (float64, bool) {
	if sig.ExecutionPrice == 0 || sig.TargetPrice == 0 {
		return 0, false
	}
	if sig.Type.IsBuyFamily() {
		return (sig.TargetPrice - sig.ExecutionPrice) / sig.ExecutionPrice, true
	}
	return (sig.ExecutionPrice - sig.TargetPrice) / sig.ExecutionPrice, true
}

// PerformanceStats summarizes executed signals with a recorded
// performance score.
type PerformanceStats struct {
	TotalSignals       int
	AveragePerformance float64
	SuccessRate        float64
	BestPerformance    float64
	WorstPerformance   float64
}

// GetPerformanceStats aggregates over executed signals that carry a
// performance score. All zeros with none recorded.
func (m *Manager) GetPerformanceStats(ctx context.Context) (PerformanceStats, error) {
	executed, err := m.signals.List(ctx, signalstore.ListFilter{Status: core.StatusExecuted})
	if err != nil {
		return PerformanceStats{}, err
	}

	var scores []float64
	for _, sig := range executed {
		if sig.PerformanceSet {
			scores = append(scores, sig.PerformanceScore)
		}
	}
	if len(scores) == 0 {
		return PerformanceStats{}, nil
	}

	stats := PerformanceStats{
		TotalSignals:     len(scores),
		BestPerformance:  scores[0],
		WorstPerformance: scores[0],
	}
	var total float64
	positive := 0
	for _, s := range scores {
		total += s
		if s > 0 {
			positive++
		}
		if s > stats.BestPerformance {
			stats.BestPerformance = s
		}
		if s < stats.WorstPerformance {
			stats.WorstPerformance = s
		}
	}
	stats.AveragePerformance = total / float64(len(scores))
	stats.SuccessRate = float64(positive) / float64(len(scores))
	return stats, nil
}
