package resolver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/models"
)

func amp(id string, priority int) models.LayerAmp {
	return models.LayerAmp{
		LayerID:  "layer-1",
		AmpID:    id,
		Priority: priority,
		Enabled:  true,
	}
}

func aggSignal(ampID string, action models.Action, confidence float64) models.AggregatedSignal {
	return models.AggregatedSignal{
		AmpID:      ampID,
		Symbol:     "AAPL",
		Action:     action,
		Confidence: confidence,
	}
}

func TestResolvePriorityHigherPriorityWins(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.4),
		},
		Amps: []models.LayerAmp{amp("amp-a", 10), amp("amp-b", 50)},
	}, models.ResolvePriority)

	// amp-b outranks amp-a despite the lower confidence.
	assert.Equal(t, models.ActionSell, out.Action)
	assert.InDelta(t, 0.4, out.Confidence, 1e-9)
	assert.True(t, out.Resolution.Conflicts)
	assert.Contains(t, out.Resolution.Reasoning, "amp-b")
}

func TestResolvePriorityTieBreaksOnConfidence(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.5),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.8),
		},
		Amps: []models.LayerAmp{amp("amp-a", 10), amp("amp-b", 10)},
	}, models.ResolvePriority)

	assert.Equal(t, models.ActionSell, out.Action)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
}

func TestResolveConfidencePicksHighest(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.55),
			"amp-b": aggSignal("amp-b", models.ActionHold, 0.95),
			"amp-c": aggSignal("amp-c", models.ActionSell, 0.60),
		},
		Amps: []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1), amp("amp-c", 1)},
	}, models.ResolveConfidence)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.InDelta(t, 0.95, out.Confidence, 1e-9)
	assert.True(t, out.Resolution.Conflicts)
}

func TestResolveVetoClosesPosition(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.3),
		},
		Amps:        []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
		HasPosition: true,
	}, models.ResolveVeto)

	// A single seller vetoes every buyer when a position is open.
	assert.Equal(t, models.ActionSell, out.Action)
	assert.True(t, out.Resolution.Conflicts)
}

func TestResolveVetoWithoutPositionHolds(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.3),
		},
		Amps:        []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
		HasPosition: false,
	}, models.ResolveVeto)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Contains(t, out.Resolution.Reasoning, "no position")
}

func TestResolveVetoWithoutSellersFallsBackToWeighted(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
			"amp-b": aggSignal("amp-b", models.ActionBuy, 0.8),
		},
		Amps:   []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
		Shares: map[string]float64{"amp-a": 0.5, "amp-b": 0.5},
	}, models.ResolveVeto)

	assert.Equal(t, models.ActionBuy, out.Action)
	assert.True(t, strings.HasPrefix(out.Resolution.Reasoning, "veto: no sell signals"))
	assert.False(t, out.Resolution.Conflicts)
}

func TestResolveWeightedCapitalDecides(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.9),
		},
		Amps:   []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
		Shares: map[string]float64{"amp-a": 0.8, "amp-b": 0.2},
	}, models.ResolveWeighted)

	// 0.8*0.9 - 0.2*0.9 = 0.54, well past the band.
	assert.Equal(t, models.ActionBuy, out.Action)
	assert.InDelta(t, 0.54, out.Confidence, 1e-9)
}

func TestResolveWeightedNeutralBandHolds(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.5),
			"amp-b": aggSignal("amp-b", models.ActionSell, 0.5),
		},
		Amps:   []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
		Shares: map[string]float64{"amp-a": 0.5, "amp-b": 0.5},
	}, models.ResolveWeighted)

	assert.Equal(t, models.ActionHold, out.Action)
}

func TestResolveWeightedWithoutSharesTreatsAmpsEqually(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.8),
			"amp-b": aggSignal("amp-b", models.ActionBuy, 0.6),
		},
		Amps: []models.LayerAmp{amp("amp-a", 1), amp("amp-b", 1)},
	}, models.ResolveWeighted)

	assert.Equal(t, models.ActionBuy, out.Action)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
}

func TestResolveUnknownStrategyDegradesToWeighted(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{
		LayerID: "layer-1",
		Symbol:  "AAPL",
		Signals: map[string]models.AggregatedSignal{
			"amp-a": aggSignal("amp-a", models.ActionBuy, 0.9),
		},
		Amps:   []models.LayerAmp{amp("amp-a", 1)},
		Shares: map[string]float64{"amp-a": 1},
	}, models.ConflictResolutionStrategy("mystery"))

	assert.Equal(t, models.ActionBuy, out.Action)
	assert.Contains(t, out.Resolution.Reasoning, `unknown strategy "mystery"`)
}

func TestResolveNoSignals(t *testing.T) {
	r := New(0.15)

	out := r.Resolve(Input{LayerID: "layer-1", Symbol: "AAPL"}, models.ResolveWeighted)

	require.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.Quantity)
	assert.Equal(t, "no amp signals to resolve", out.Resolution.Reasoning)
}
