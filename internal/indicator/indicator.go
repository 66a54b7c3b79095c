// Package indicator computes technical indicators and the additive
// technical score used for signal generation. The scoring is a
// deliberately simple, interpretable heuristic built from fixed
// bonuses, not a trained statistical estimator.
package indicator

import (
	"math"

	"github.com/tradingpro/pulse/internal/core"
)

// Snapshot bundles the indicator values computed from one bar series.
type Snapshot struct {
	OverallScore   float64
	RSI            float64
	MACD           float64
	MA20           float64
	MA50           float64
	BollingerUpper float64
	BollingerLower float64
	PriceVsMA20    float64
	PriceVsMA50    float64
	VolumeRatio    float64
}

// SMA calculates the simple moving average over the trailing period.
// With fewer than period values it averages everything available.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		period = len(prices)
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average, seeded with the first
// price and smoothed with multiplier 2/(period+1). With fewer than
// period values it falls back to the plain mean.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return SMA(prices, len(prices))
	}
	multiplier := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*multiplier + ema*(1-multiplier)
	}
	return ema
}

// RSI calculates the relative strength index over the trailing window
// of price deltas. Returns neutral 50 with fewer than period+1 prices;
// 100 when the window has no losses.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// MACD is EMA(12) minus EMA(26). Returns 0 with fewer than 26 prices.
func MACD(prices []float64) float64 {
	if len(prices) < 26 {
		return 0.0
	}
	return EMA(prices, 12) - EMA(prices, 26)
}

// Bollinger calculates the upper and lower bands as SMA(period) ±
// k standard deviations over the trailing window. With fewer than
// period prices both bands collapse to the latest price.
func Bollinger(prices []float64, period int, k float64) (upper, lower float64) {
	if len(prices) == 0 {
		return 0, 0
	}
	if len(prices) < period {
		last := prices[len(prices)-1]
		return last, last
	}

	window := prices[len(prices)-period:]
	mean := SMA(window, period)

	var variance float64
	for _, p := range window {
		d := p - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return mean + k*sd, mean - k*sd
}

// Compute builds the full indicator snapshot from a bar series
// (oldest to newest), optionally anchored to a live last price from
// the quote. With no bars it returns a neutral snapshot.
func Compute(bars []core.Bar, quote *core.Quote) Snapshot {
	if len(bars) == 0 {
		return Snapshot{OverallScore: 0.5, RSI: 50.0, VolumeRatio: 1.0}
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	snap := Snapshot{
		RSI:  RSI(closes, 14),
		MACD: MACD(closes),
		MA20: SMA(closes, 20),
		MA50: SMA(closes, 50),
	}
	snap.BollingerUpper, snap.BollingerLower = Bollinger(closes, 20, 2.0)

	price := closes[len(closes)-1]
	if quote != nil && quote.LastPrice > 0 {
		price = quote.LastPrice
	}

	snap.PriceVsMA20 = (price - snap.MA20) / snap.MA20
	snap.PriceVsMA50 = (price - snap.MA50) / snap.MA50

	avgVolume := SMA(volumes, 20)
	if avgVolume > 0 {
		snap.VolumeRatio = volumes[len(volumes)-1] / avgVolume
	} else {
		snap.VolumeRatio = 1.0
	}

	snap.OverallScore = score(snap)
	return snap
}

// score adjusts a neutral 0.5 by fixed additive bonuses and clamps to
// [0, 1].
func score(s Snapshot) float64 {
	v := 0.5

	switch {
	case s.PriceVsMA20 > 0.02:
		v += 0.2
	case s.PriceVsMA20 < -0.02:
		v -= 0.2
	}

	switch {
	case s.PriceVsMA50 > 0.05:
		v += 0.1
	case s.PriceVsMA50 < -0.05:
		v -= 0.1
	}

	switch {
	case s.RSI < 30: // oversold, bullish
		v += 0.15
	case s.RSI > 70: // overbought, bearish
		v -= 0.15
	}

	switch {
	case s.VolumeRatio > 1.5:
		v += 0.1
	case s.VolumeRatio < 0.5:
		v -= 0.05
	}

	return math.Max(0.0, math.Min(1.0, v))
}

// SignalFor maps an overall score to a signal type and confidence.
// Confidence is |score-0.5|*2, floored at 0.1.
func SignalFor(overallScore float64) (core.SignalType, float64) {
	var t core.SignalType
	switch {
	case overallScore > 0.7:
		t = core.SignalStrongBuy
	case overallScore > 0.6:
		t = core.SignalBuy
	case overallScore < 0.3:
		t = core.SignalStrongSell
	case overallScore < 0.4:
		t = core.SignalSell
	default:
		t = core.SignalHold
	}

	confidence := math.Abs(overallScore-0.5) * 2
	if confidence < 0.1 {
		confidence = 0.1
	}

	return t, confidence
}
