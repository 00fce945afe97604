// Package integrator fuses the signals of an amp's strategy modules into one
// aggregated signal, weighted by the prevailing market regime.
package integrator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"amp-engine/internal/models"
)

// WeightTable maps a regime to per-module weights. Weights are normalized to
// sum to 1 per regime at construction; module ids absent from a regime's row
// carry zero weight.
type WeightTable map[models.MarketRegime]map[string]float64

// NewWeightTable builds a normalized weight table from raw configuration.
// Rows whose weights do not sum to 1 are rescaled rather than rejected, and
// regimes missing from the input get an empty row (every lookup is total).
func NewWeightTable(raw map[string]map[string]float64) WeightTable {
	table := make(WeightTable, len(models.Regimes))
	for _, regime := range models.Regimes {
		row := make(map[string]float64)
		var sum float64
		for id, w := range raw[string(regime)] {
			if w > 0 {
				row[id] = w
				sum += w
			}
		}
		if sum > 0 && math.Abs(sum-1) > 1e-9 {
			for id := range row {
				row[id] /= sum
			}
		}
		table[regime] = row
	}
	return table
}

// Weight returns the weight of a module under a regime. Unknown ids are 0.
func (t WeightTable) Weight(regime models.MarketRegime, moduleID string) float64 {
	return t[regime][moduleID]
}

// Integrator aggregates module signals by weighted vote.
type Integrator struct {
	weights     WeightTable
	neutralBand float64
}

// New creates an integrator with the given weight table and neutral band.
// Scores with magnitude below the band resolve to hold, so weak consensus
// does not flip positions back and forth.
func New(weights WeightTable, neutralBand float64) *Integrator {
	return &Integrator{weights: weights, neutralBand: neutralBand}
}

// Integrate fuses moduleSignals for one amp into an AggregatedSignal. The
// vote is the sum over modules of action score (+1 buy, -1 sell, 0 hold)
// times confidence times strength times module weight, normalized by the
// total weight of the modules that reported. If every reporting module has
// zero weight under the regime the result degrades to hold with zero
// confidence and says so.
func (g *Integrator) Integrate(ampID string, moduleSignals []models.ModuleSignal, regime models.MarketRegime) models.AggregatedSignal {
	agg := models.AggregatedSignal{
		AmpID:  ampID,
		Regime: regime,
		Action: models.ActionHold,
	}
	if len(moduleSignals) == 0 {
		agg.Reasoning = "no module signals"
		return agg
	}
	agg.Symbol = moduleSignals[0].Symbol
	agg.Timestamp = moduleSignals[0].Timestamp

	var score, totalWeight float64
	contributions := make([]models.SignalContribution, 0, len(moduleSignals))
	for _, sig := range moduleSignals {
		w := g.weights.Weight(regime, sig.ModuleID)
		applied := sig.Action.Score() * sig.Confidence * sig.Strength * w
		score += applied
		totalWeight += w
		contributions = append(contributions, models.SignalContribution{
			ModuleID: sig.ModuleID,
			Signal:   sig,
			Weight:   w,
			Applied:  applied,
		})
	}
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].ModuleID < contributions[j].ModuleID
	})
	agg.Contributions = contributions

	if totalWeight == 0 {
		// Misconfigured weight table for this regime; degrade instead of
		// dividing by zero.
		agg.Reasoning = fmt.Sprintf("degenerate weight table: all module weights are zero for regime %s", regime)
		return agg
	}

	normalized := score / totalWeight
	agg.Score = normalized
	agg.Confidence = math.Min(math.Abs(normalized), 1)

	switch {
	case normalized >= g.neutralBand:
		agg.Action = models.ActionBuy
	case normalized <= -g.neutralBand:
		agg.Action = models.ActionSell
	default:
		agg.Action = models.ActionHold
	}

	agg.Reasoning = g.describe(normalized, regime, contributions)
	return agg
}

func (g *Integrator) describe(score float64, regime models.MarketRegime, contributions []models.SignalContribution) string {
	parts := make([]string, 0, len(contributions))
	for _, c := range contributions {
		parts = append(parts, fmt.Sprintf("%s=%s(w=%.2f)", c.ModuleID, c.Signal.Action, c.Weight))
	}
	return fmt.Sprintf("weighted vote %.3f under %s regime (band %.2f): %s",
		score, regime, g.neutralBand, strings.Join(parts, ", "))
}
