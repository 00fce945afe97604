package strategy

import (
	"fmt"

	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
)

// MomentumModule trades in the direction of the short-term trend when volume
// confirms it: buy when the fast average rides above the slow one with price
// leading and above-average volume, sell on the mirror image.
type MomentumModule struct{}

// NewMomentum creates a momentum module.
func NewMomentum() *MomentumModule {
	return &MomentumModule{}
}

// ID implements Module.
func (m *MomentumModule) ID() string { return "momentum" }

// MinBars implements Module.
func (m *MomentumModule) MinBars() int { return 21 }

// Evaluate implements Module.
func (m *MomentumModule) Evaluate(history []models.IndicatorSet, bar models.MarketBar) models.ModuleSignal {
	if len(history) < m.MinBars() {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	latest := history[len(history)-1]
	fast, okFast := latest.Value(indicators.SMA10)
	slow, okSlow := latest.Value(indicators.SMA20)
	volAvg, okVol := latest.Value(indicators.VolumeSMA20)
	if !okFast || !okSlow || !okVol || slow == 0 {
		return insufficientHistory(m.ID(), bar, len(history), m.MinBars())
	}

	spread := (fast - slow) / slow
	volumeConfirms := volAvg > 0 && float64(bar.Volume) > volAvg

	// Persistence: how many of the recent sets kept the fast average on the
	// same side of the slow one.
	lookback := 5
	if len(history) < lookback {
		lookback = len(history)
	}
	aligned := 0
	for i := len(history) - lookback; i < len(history); i++ {
		f, ok1 := history[i].Value(indicators.SMA10)
		s, ok2 := history[i].Value(indicators.SMA20)
		if ok1 && ok2 && (f-s)*spread > 0 {
			aligned++
		}
	}
	persistence := float64(aligned) / float64(lookback)

	strength := clamp01(absFloat(spread) * 50) // 2% spread saturates
	confidence := clamp01(0.5*persistence + 0.3*strength)
	if volumeConfirms {
		confidence = clamp01(confidence + 0.2)
	}

	switch {
	case spread > 0 && bar.Close > fast && volumeConfirms:
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionBuy,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("uptrend: sma10 %.2f > sma20 %.2f (spread %.2f%%), volume %.0f above avg %.0f",
				fast, slow, spread*100, float64(bar.Volume), volAvg),
		}
	case spread < 0 && bar.Close < fast:
		return models.ModuleSignal{
			ModuleID:   m.ID(),
			Symbol:     bar.Symbol,
			Timestamp:  bar.Timestamp,
			Action:     models.ActionSell,
			Confidence: confidence,
			Strength:   strength,
			Reasoning: fmt.Sprintf("downtrend: sma10 %.2f < sma20 %.2f (spread %.2f%%)",
				fast, slow, spread*100),
		}
	default:
		return hold(m.ID(), bar, fmt.Sprintf("no confirmed trend: spread %.2f%%, volume confirms=%t",
			spread*100, volumeConfirms))
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
