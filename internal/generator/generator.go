// Package generator produces trading signals by fusing LLM-scored news
// sentiment with technical indicators.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/indicator"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/scoring"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/market"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
)

// Params tunes the generation windows.
type Params struct {
	ArticleWindow time.Duration // news lookback for the sentiment path
	ArticleLimit  int           // max articles fused into one signal
	HistoryDays   int           // bar lookback for the technical path
	ExpiryWindow  time.Duration // how long a new signal stays active
}

// DefaultParams returns the standard generation windows.
func DefaultParams() Params {
	return Params{
		ArticleWindow: 7 * 24 * time.Hour,
		ArticleLimit:  10,
		HistoryDays:   30,
		ExpiryWindow:  24 * time.Hour,
	}
}

// Generator builds and persists trading signals.
type Generator struct {
	markets  market.Store
	articles article.Store
	signals  signalstore.Store
	scorer   *scoring.Scorer
	params   Params
	logger   *zap.Logger
	metrics  *metrics.Registry

	now func() time.Time
}

// New creates a signal generator.
func New(markets market.Store, articles article.Store, signals signalstore.Store, scorer *scoring.Scorer, params Params, logger *zap.Logger) *Generator {
	if params.ArticleLimit <= 0 {
		params = DefaultParams()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		markets:  markets,
		articles: articles,
		signals:  signals,
		scorer:   scorer,
		params:   params,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches a registry; generated signals and batch cycles
// are counted on it.
func (g *Generator) WithMetrics(reg *metrics.Registry) *Generator {
	g.metrics = reg
	return g
}

// GenerateSignal produces one signal for the ticker using the given
// analysis path, persists it with its metadata snapshot, and returns
// it. Returns ErrNoData when the path has nothing to work from.
func (g *Generator) GenerateSignal(ctx context.Context, symbol string, source core.SignalSource) (*core.Signal, error) {
	if _, err := g.markets.GetTicker(ctx, symbol); err != nil {
		return nil, err
	}

	quote, err := g.markets.LatestQuote(ctx, symbol)
	if err != nil && !errors.Is(err, core.ErrNoData) {
		return nil, err
	}

	articles, err := g.recentArticles(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var sig *core.Signal
	switch source {
	case core.SourceGPTAnalysis:
		sig, err = g.sentimentSignal(ctx, symbol, articles)
	case core.SourceMarketData:
		sig, err = g.technicalSignal(ctx, symbol, quote)
	case core.SourceCombined:
		sig, err = g.combinedSignal(ctx, symbol, quote, articles)
	default:
		return nil, core.WrapError(core.ErrUnknownSource, fmt.Errorf("source %q", source))
	}
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, core.ErrNoData
	}

	now := g.now().UTC()
	sig.Symbol = symbol
	sig.Status = core.StatusActive
	sig.GeneratedAt = now
	sig.ExpiryTime = now.Add(g.params.ExpiryWindow)
	if quote != nil {
		sig.QuoteTime = quote.Timestamp
	}

	if err := g.signals.Save(ctx, sig); err != nil {
		return nil, err
	}
	if err := g.saveMetadata(ctx, sig, quote, articles); err != nil {
		g.logger.Warn("metadata snapshot failed",
			zap.String("signal_id", sig.ID), zap.Error(err))
	}

	if g.metrics != nil {
		g.metrics.RecordSignal(string(sig.Source), string(sig.Type))
	}
	g.logger.Info("generated signal",
		zap.String("symbol", symbol),
		zap.String("type", string(sig.Type)),
		zap.String("source", string(sig.Source)),
		zap.Float64("confidence", sig.Confidence))
	return sig, nil
}

// GenerateForSymbols runs generation over a batch of tickers. A
// failure on one ticker is logged and does not stop the rest.
func (g *Generator) GenerateForSymbols(ctx context.Context, symbols []string, source core.SignalSource) []*core.Signal {
	start := g.now()
	var result []*core.Signal
	for _, symbol := range symbols {
		sig, err := g.GenerateSignal(ctx, symbol, source)
		if err != nil {
			g.logger.Error("signal generation failed",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		result = append(result, sig)
	}
	if g.metrics != nil {
		g.metrics.RecordGenerationCycle(time.Since(start).Seconds())
	}
	return result
}

func (g *Generator) recentArticles(ctx context.Context, symbol string) ([]*core.Article, error) {
	since := g.now().UTC().Add(-g.params.ArticleWindow)
	return g.articles.FindBySymbol(ctx, symbol, since, g.params.ArticleLimit)
}

// sentimentSignal fuses the news annotations of recent articles into a
// signal. Unscored articles are scored inline; articles that stay
// unscored after that are left out of the fusion.
func (g *Generator) sentimentSignal(ctx context.Context, symbol string, articles []*core.Article) (*core.Signal, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	var totalSentiment, totalImpact float64
	scored := 0
	for _, a := range articles {
		if !a.Scored() {
			g.scorer.Annotate(ctx, a)
			if err := g.articles.Save(ctx, a); err != nil {
				return nil, err
			}
		}
		if !a.Scored() {
			continue
		}
		totalSentiment += sentimentScore(a.Sentiment) * confidenceOrDefault(a.SentimentConfidence)
		totalImpact += impactScore(a.Impact) * confidenceOrDefault(a.ImpactConfidence)
		scored++
	}
	if scored == 0 {
		return nil, nil
	}

	avgSentiment := totalSentiment / float64(scored)
	avgImpact := totalImpact / float64(scored)
	signalType, confidence := signalFromScores(avgSentiment, avgImpact)

	return &core.Signal{
		Type:           signalType,
		Confidence:     confidence,
		Source:         core.SourceGPTAnalysis,
		SentimentScore: avgSentiment,
		SentimentLabel: sentimentLabel(avgSentiment),
		Reasoning: fmt.Sprintf(
			"Based on analysis of %d recent news articles. Average sentiment: %.2f, Impact: %.2f",
			scored, avgSentiment, avgImpact),
		MarketContext: map[string]any{
			"articles_analyzed":   scored,
			"sentiment_breakdown": sentimentBreakdown(articles),
			"impact_breakdown":    impactBreakdown(articles),
		},
		RelatedArticleIDs: articleIDs(articles),
	}, nil
}

// technicalSignal derives a signal from the indicator snapshot of the
// recent bar history, anchored to the live quote.
func (g *Generator) technicalSignal(ctx context.Context, symbol string, quote *core.Quote) (*core.Signal, error) {
	if quote == nil {
		return nil, nil
	}

	bars, err := g.historicalBars(ctx, symbol, g.params.HistoryDays)
	if err != nil {
		return nil, err
	}

	snap := indicator.Compute(bars, quote)
	signalType, confidence := indicator.SignalFor(snap.OverallScore)

	return &core.Signal{
		Type:           signalType,
		Confidence:     confidence,
		Source:         core.SourceMarketData,
		TechnicalScore: snap.OverallScore,
		Reasoning: fmt.Sprintf(
			"Based on technical analysis. Price: $%.2f, Volume: %d, Technical Score: %.2f",
			quote.LastPrice, quote.Volume, snap.OverallScore),
		MarketContext: map[string]any{
			"current_price":        quote.LastPrice,
			"volume":               quote.Volume,
			"technical_indicators": indicatorContext(snap),
		},
	}, nil
}

// combinedSignal fuses the sentiment and technical paths. With both
// available the confidence is weighted 60/40 in favor of sentiment and
// the types are reconciled; with only one it passes through. The
// intermediate signals are never persisted.
func (g *Generator) combinedSignal(ctx context.Context, symbol string, quote *core.Quote, articles []*core.Article) (*core.Signal, error) {
	newsSig, err := g.sentimentSignal(ctx, symbol, articles)
	if err != nil {
		return nil, err
	}
	techSig, err := g.technicalSignal(ctx, symbol, quote)
	if err != nil {
		return nil, err
	}

	if newsSig == nil && techSig == nil {
		return nil, nil
	}
	if newsSig == nil {
		return techSig, nil
	}
	if techSig == nil {
		return newsSig, nil
	}

	combinedConfidence := newsSig.Confidence*0.6 + techSig.Confidence*0.4

	return &core.Signal{
		Type:           combineTypes(newsSig.Type, techSig.Type),
		Confidence:     combinedConfidence,
		Source:         core.SourceCombined,
		SentimentScore: newsSig.SentimentScore,
		SentimentLabel: newsSig.SentimentLabel,
		TechnicalScore: techSig.TechnicalScore,
		CombinedScore:  combinedConfidence,
		Reasoning: fmt.Sprintf(
			"Combined analysis: GPT (%.2f) + Technical (%.2f). GPT: %s, Technical: %s",
			newsSig.Confidence, techSig.Confidence, newsSig.Type, techSig.Type),
		MarketContext: map[string]any{
			"gpt_analysis": map[string]any{
				"signal_type": string(newsSig.Type),
				"confidence":  newsSig.Confidence,
				"sentiment":   newsSig.SentimentScore,
			},
			"technical_analysis": map[string]any{
				"signal_type":     string(techSig.Type),
				"confidence":      techSig.Confidence,
				"technical_score": techSig.TechnicalScore,
			},
		},
		RelatedArticleIDs: articleIDs(articles),
	}, nil
}

func (g *Generator) historicalBars(ctx context.Context, symbol string, days int) ([]core.Bar, error) {
	since := g.now().UTC().AddDate(0, 0, -days)
	return g.markets.BarsSince(ctx, symbol, "1d", since)
}

func sentimentScore(s core.Sentiment) float64 {
	switch s {
	case core.SentimentPositive:
		return 0.7
	case core.SentimentNegative:
		return -0.7
	default:
		return 0.0
	}
}

func impactScore(i core.Impact) float64 {
	switch i {
	case core.ImpactHigh:
		return 1.0
	case core.ImpactMedium:
		return 0.5
	case core.ImpactLow:
		return 0.2
	default:
		return 0.0
	}
}

func sentimentLabel(score float64) core.Sentiment {
	switch {
	case score > 0.3:
		return core.SentimentPositive
	case score < -0.3:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}

// signalFromScores maps the weighted averages to a type and a
// confidence. Confidence scales sentiment magnitude by impact, clamped
// to [0.1, 1.0].
func signalFromScores(sentiment, impact float64) (core.SignalType, float64) {
	combined := sentiment*0.7 + impact*0.3

	var t core.SignalType
	switch {
	case combined > 0.8:
		t = core.SignalStrongBuy
	case combined > 0.5:
		t = core.SignalBuy
	case combined < -0.8:
		t = core.SignalStrongSell
	case combined < -0.5:
		t = core.SignalSell
	default:
		t = core.SignalHold
	}

	confidence := math.Min(math.Abs(combined)*impact, 1.0)
	confidence = math.Max(confidence, 0.1)
	return t, confidence
}

// combineTypes reconciles the two analysis paths. Agreement passes
// through, a strong type beats a plain one, same-direction pairs keep
// the direction, and opposed directions resolve to hold.
func combineTypes(newsType, techType core.SignalType) core.SignalType {
	if newsType == techType {
		return newsType
	}
	if newsType.IsStrong() && !techType.IsStrong() {
		return newsType
	}
	if techType.IsStrong() && !newsType.IsStrong() {
		return techType
	}
	if newsType.IsBuyFamily() && techType.IsBuyFamily() {
		if newsType.IsStrong() || techType.IsStrong() {
			return core.SignalStrongBuy
		}
		return core.SignalBuy
	}
	if newsType.IsSellFamily() && techType.IsSellFamily() {
		if newsType.IsStrong() || techType.IsStrong() {
			return core.SignalStrongSell
		}
		return core.SignalSell
	}
	return core.SignalHold
}

// confidenceOrDefault treats a missing confidence as 0.5.
func confidenceOrDefault(c float64) float64 {
	if c == 0 {
		return 0.5
	}
	return c
}

func sentimentBreakdown(articles []*core.Article) map[string]int {
	breakdown := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
	for _, a := range articles {
		if a.Sentiment != "" {
			breakdown[string(a.Sentiment)]++
		}
	}
	return breakdown
}

func impactBreakdown(articles []*core.Article) map[string]int {
	breakdown := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, a := range articles {
		if a.Impact != "" {
			breakdown[string(a.Impact)]++
		}
	}
	return breakdown
}

func articleIDs(articles []*core.Article) []string {
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids
}

func indicatorContext(snap indicator.Snapshot) map[string]any {
	return map[string]any{
		"overall_score": snap.OverallScore,
		"rsi":           snap.RSI,
		"macd":          snap.MACD,
		"ma_20":         snap.MA20,
		"ma_50":         snap.MA50,
		"bb_upper":      snap.BollingerUpper,
		"bb_lower":      snap.BollingerLower,
		"price_vs_ma20": snap.PriceVsMA20,
		"price_vs_ma50": snap.PriceVsMA50,
		"volume_ratio":  snap.VolumeRatio,
	}
}
