package strategy

import (
	"fmt"

	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
)

// BreakoutModule trades range expansion: a close beyond the prior trading
// range by a volatility-scaled margin signals a breakout in that direction.
type BreakoutModule struct {
	// ATRMultiple is the fraction of ATR the close must clear the range by.
	ATRMultiple float64
}

// NewBreakout creates a breakout module requiring a half-ATR clearance.
func NewBreakout() *BreakoutModule {
	return &BreakoutModule{ATRMultiple: 0.5}
}

// ID implements Module.
func (m *BreakoutModule) ID() string { return "breakout" }

// MinBars implements Module.
func (m *BreakoutModule) MinBars() int { return 21 }

// Evaluate implements Module.
func (m *BreakoutModule) Evaluate(history []models.IndicatorSet, bar models.MarketBar) models.ModuleSignal {
	if len(history) < m.MinBars() {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	// The range must predate the current bar, otherwise the breakout bar
	// itself defines the extreme it is supposed to clear.
	prior := history[len(history)-2]
	rangeHigh, okHigh := prior.Value(indicators.High20)
	rangeLow, okLow := prior.Value(indicators.Low20)
	atr, okATR := history[len(history)-1].Value(indicators.ATR14)
	if !okHigh || !okLow || !okATR || atr <= 0 {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	threshold := m.ATRMultiple * atr
	volAvg, okVol := history[len(history)-1].Value(indicators.VolumeSMA20)
	volumeExpands := okVol && volAvg > 0 && float64(bar.Volume) > 1.5*volAvg

	switch {
	case bar.Close > rangeHigh+threshold:
		excess := bar.Close - rangeHigh
		strength := clamp01(excess / (2 * atr))
		confidence := clamp01(0.4 + 0.3*strength)
		if volumeExpands {
			confidence = clamp01(confidence + 0.3)
		}
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionBuy,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("close %.2f broke above 20-bar high %.2f by %.2f (atr %.2f, volume expands=%t)",
				bar.Close, rangeHigh, excess, atr, volumeExpands),
		}
	case bar.Close < rangeLow-threshold:
		excess := rangeLow - bar.Close
		strength := clamp01(excess / (2 * atr))
		confidence := clamp01(0.4 + 0.3*strength)
		if volumeExpands {
			confidence = clamp01(confidence + 0.3)
		}
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionSell,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("close %.2f broke below 20-bar low %.2f by %.2f (atr %.2f, volume expands=%t)",
				bar.Close, rangeLow, excess, atr, volumeExpands),
		}
	default:
		return hold(m.ID(), bar, fmt.Sprintf("close %.2f inside range [%.2f, %.2f] + %.2f threshold",
			bar.Close, rangeLow, rangeHigh, threshold))
	}
}
