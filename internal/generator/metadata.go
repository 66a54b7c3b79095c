package generator

import (
	"context"
	"time"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/indicator"
)

// saveMetadata records the market-condition snapshot alongside a
// freshly generated signal. Only the persisted signal gets a snapshot;
// intermediate fusion inputs never do.
func (g *Generator) saveMetadata(ctx context.Context, sig *core.Signal, quote *core.Quote, articles []*core.Article) error {
	meta := &core.SignalMetadata{
		SignalID:           sig.ID,
		RecentNewsCount:    len(articles),
		NewsSentimentScore: sig.SentimentScore,
		NewsImpactScore:    newsImpact(articles),
		CreatedAt:          g.now().UTC(),
	}

	if quote != nil {
		meta.VolumeRatio = g.volumeRatio(ctx, sig.Symbol, quote.Volume)
		meta.AverageVolume = g.averageVolume(ctx, sig.Symbol)
		meta.HasVolume = true
	}

	if sig.TechnicalScore != 0 {
		bars, err := g.historicalBars(ctx, sig.Symbol, 50)
		if err == nil && len(bars) > 0 {
			snap := indicator.Compute(bars, quote)
			meta.RSI = snap.RSI
			meta.MACD = snap.MACD
			meta.MovingAverage20 = snap.MA20
			meta.MovingAverage50 = snap.MA50
			meta.BollingerUpper = snap.BollingerUpper
			meta.BollingerLower = snap.BollingerLower
			meta.HasIndicators = true
		}
	}

	return g.signals.SaveMetadata(ctx, meta)
}

// newsImpact is the confidence-weighted average impact score over the
// scored articles, 0 when none are scored.
func newsImpact(articles []*core.Article) float64 {
	var total float64
	count := 0
	for _, a := range articles {
		if a.Impact == "" {
			continue
		}
		total += impactScore(a.Impact) * confidenceOrDefault(a.ImpactConfidence)
		count++
	}
	if count == 0 {
		return 0.0
	}
	return total / float64(count)
}

// volumeRatio compares the current volume against the 20-day average
// quote volume, defaulting to 1.0 without history.
func (g *Generator) volumeRatio(ctx context.Context, symbol string, currentVolume int64) float64 {
	since := g.now().UTC().AddDate(0, 0, -20)
	quotes, err := g.markets.QuotesSince(ctx, symbol, since)
	if err != nil || len(quotes) == 0 {
		return 1.0
	}

	var total int64
	for _, q := range quotes {
		total += q.Volume
	}
	avg := float64(total) / float64(len(quotes))
	if avg <= 0 {
		return 1.0
	}
	return float64(currentVolume) / avg
}

// averageVolume is the mean quote volume over the last 30 days,
// 0 without history.
func (g *Generator) averageVolume(ctx context.Context, symbol string) int64 {
	since := g.now().UTC().Add(-30 * 24 * time.Hour)
	quotes, err := g.markets.QuotesSince(ctx, symbol, since)
	if err != nil || len(quotes) == 0 {
		return 0
	}

	var total int64
	for _, q := range quotes {
		total += q.Volume
	}
	return total / int64(len(quotes))
}
