// Package strategy provides the pluggable trade-signal modules that turn
// indicator history into per-module signals. Modules are pure: stateless
// across calls, reading only the history they are given and never mutating
// their inputs. New strategies are added by implementing Module; the
// integrator never needs to change.
package strategy

import (
	"fmt"

	"amp-engine/internal/models"
)

// Module produces a ModuleSignal from an indicator history and the current
// bar. Implementations must be total: too little history yields a hold signal
// with zero confidence, never an error.
type Module interface {
	// ID returns the stable module identifier used in weight tables.
	ID() string
	// MinBars returns the minimum history length the module needs before it
	// will emit anything other than hold.
	MinBars() int
	// Evaluate computes the module's signal for the current bar.
	Evaluate(history []models.IndicatorSet, bar models.MarketBar) models.ModuleSignal
}

// hold builds the neutral signal a module emits when it cannot decide.
func hold(moduleID string, bar models.MarketBar, reason string) models.ModuleSignal {
	return models.ModuleSignal{
		ModuleID:  moduleID,
		Symbol:    bar.Symbol,
		Timestamp: bar.Timestamp,
		Action:    models.ActionHold,
		Reasoning: reason,
	}
}

// insufficientHistory is the shared degraded result for short histories.
func insufficientHistory(moduleID string, bar models.MarketBar, have, need int) models.ModuleSignal {
	return hold(moduleID, bar, fmt.Sprintf("insufficient history: %d bars, need %d", have, need))
}

// clamp01 restricts a value to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
