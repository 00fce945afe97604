// Package regime classifies market state from recent bars. Classification is
// total and deterministic: the same window always yields exactly one regime.
package regime

import (
	"math"

	"amp-engine/internal/config"
	"amp-engine/internal/models"
)

// Detector classifies the current market regime from a rolling bar window.
type Detector struct {
	cfg config.RegimeConfig
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg config.RegimeConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Classify returns the regime for the trailing window of bars. High realized
// volatility wins over any trend reading; otherwise the normalized regression
// slope decides between trending and ranging. Short histories classify as
// ranging, the most conservative reading.
func (d *Detector) Classify(bars []models.MarketBar) models.MarketRegime {
	window := d.cfg.Window
	if len(bars) < window {
		return models.RegimeRanging
	}
	recent := bars[len(bars)-window:]

	if realizedVolatility(recent) > d.cfg.HighVolThreshold {
		return models.RegimeHighVolatility
	}

	slope := normalizedSlope(recent)
	switch {
	case slope > d.cfg.TrendSlopeThreshold:
		return models.RegimeTrendingUp
	case slope < -d.cfg.TrendSlopeThreshold:
		return models.RegimeTrendingDown
	default:
		return models.RegimeRanging
	}
}

// normalizedSlope fits a least-squares line through the closes and returns
// the per-bar slope divided by the mean close, so the threshold is a
// price-independent fraction.
func normalizedSlope(bars []models.MarketBar) float64 {
	n := float64(len(bars))
	var sumX, sumY, sumXY, sumXX float64
	for i, bar := range bars {
		x := float64(i)
		sumX += x
		sumY += bar.Close
		sumXY += x * bar.Close
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom

	mean := sumY / n
	if mean == 0 {
		return 0
	}
	return slope / mean
}

// realizedVolatility is the standard deviation of simple per-bar returns.
func realizedVolatility(bars []models.MarketBar) float64 {
	if len(bars) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (bars[i].Close-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}
