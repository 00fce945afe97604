package strategy

import (
	"fmt"

	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
)

// MeanReversionModule fades moves that stretch beyond a volatility band
// around the rolling mean, but only once the bar itself shows a turn back
// toward the mean.
type MeanReversionModule struct {
	// BandWidth is the band half-width in standard deviations.
	BandWidth float64
}

// NewMeanReversion creates a mean-reversion module with a 2-sigma band.
func NewMeanReversion() *MeanReversionModule {
	return &MeanReversionModule{BandWidth: 2.0}
}

// ID implements Module.
func (m *MeanReversionModule) ID() string { return "mean_reversion" }

// MinBars implements Module.
func (m *MeanReversionModule) MinBars() int { return 20 }

// Evaluate implements Module.
func (m *MeanReversionModule) Evaluate(history []models.IndicatorSet, bar models.MarketBar) models.ModuleSignal {
	if len(history) < m.MinBars() {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	latest := history[len(history)-1]
	mean, okMean := latest.Value(indicators.SMA20)
	sigma, okSigma := latest.Value(indicators.StdDev20)
	if !okMean || !okSigma || sigma <= 0 {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	upper := mean + m.BandWidth*sigma
	lower := mean - m.BandWidth*sigma

	// Deviation beyond the band, in sigma units; one extra sigma saturates
	// strength.
	rsi, hasRSI := latest.Value(indicators.RSI14)

	switch {
	case bar.Close < lower && bar.Close > bar.Open:
		strength := clamp01((lower - bar.Close) / sigma)
		confidence := clamp01(0.4 + 0.4*strength)
		if hasRSI && rsi < 30 {
			confidence = clamp01(confidence + 0.2)
		}
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionBuy,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("close %.2f below lower band %.2f (mean %.2f, sigma %.2f) with bullish reversal bar",
				bar.Close, lower, mean, sigma),
		}
	case bar.Close > upper && bar.Close < bar.Open:
		strength := clamp01((bar.Close - upper) / sigma)
		confidence := clamp01(0.4 + 0.4*strength)
		if hasRSI && rsi > 70 {
			confidence = clamp01(confidence + 0.2)
		}
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionSell,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("close %.2f above upper band %.2f (mean %.2f, sigma %.2f) with bearish reversal bar",
				bar.Close, upper, mean, sigma),
		}
	default:
		return hold(m.ID(), bar, fmt.Sprintf("close %.2f inside band [%.2f, %.2f] or no reversal",
			bar.Close, lower, upper))
	}
}
