package integrator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/models"
)

func signal(moduleID string, action models.Action, confidence, strength float64) models.ModuleSignal {
	return models.ModuleSignal{
		ModuleID:   moduleID,
		Symbol:     "AAPL",
		Timestamp:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Action:     action,
		Confidence: confidence,
		Strength:   strength,
	}
}

func TestWeightTableNormalizesRows(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"a": 2, "b": 2},
	})

	assert.InDelta(t, 0.5, table.Weight(models.RegimeRanging, "a"), 1e-9)
	assert.InDelta(t, 0.5, table.Weight(models.RegimeRanging, "b"), 1e-9)
	assert.Zero(t, table.Weight(models.RegimeRanging, "unknown"))
	// Regimes absent from the input still resolve, to zero weights.
	assert.Zero(t, table.Weight(models.RegimeTrendingUp, "a"))
}

func TestWeightTableDropsNonPositiveWeights(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"a": 1, "b": -3, "c": 0},
	})

	assert.InDelta(t, 1.0, table.Weight(models.RegimeRanging, "a"), 1e-9)
	assert.Zero(t, table.Weight(models.RegimeRanging, "b"))
	assert.Zero(t, table.Weight(models.RegimeRanging, "c"))
}

func TestIntegrateUnanimousBuy(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"a": 0.5, "b": 0.5},
	})
	integrator := New(table, 0.15)

	agg := integrator.Integrate("amp-1", []models.ModuleSignal{
		signal("a", models.ActionBuy, 1, 1),
		signal("b", models.ActionBuy, 1, 1),
	}, models.RegimeRanging)

	assert.Equal(t, models.ActionBuy, agg.Action)
	assert.InDelta(t, 1.0, agg.Score, 1e-9)
	assert.InDelta(t, 1.0, agg.Confidence, 1e-9)
	assert.Equal(t, "amp-1", agg.AmpID)
	assert.Equal(t, "AAPL", agg.Symbol)
}

func TestIntegrateWeakConsensusHolds(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"a": 0.5, "b": 0.5},
	})
	integrator := New(table, 0.15)

	// Opposing weak votes cancel to well inside the neutral band.
	agg := integrator.Integrate("amp-1", []models.ModuleSignal{
		signal("a", models.ActionBuy, 0.3, 0.5),
		signal("b", models.ActionSell, 0.3, 0.4),
	}, models.RegimeRanging)

	assert.Equal(t, models.ActionHold, agg.Action)
	assert.Less(t, agg.Confidence, 0.15)
}

func TestIntegrateZeroWeightTableDegrades(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"other": 1},
	})
	integrator := New(table, 0.15)

	agg := integrator.Integrate("amp-1", []models.ModuleSignal{
		signal("a", models.ActionBuy, 1, 1),
	}, models.RegimeRanging)

	require.Equal(t, models.ActionHold, agg.Action)
	assert.Zero(t, agg.Confidence)
	assert.True(t, strings.Contains(agg.Reasoning, "degenerate weight table"),
		"reasoning should explain the degradation: %s", agg.Reasoning)
}

func TestIntegrateNoSignals(t *testing.T) {
	integrator := New(NewWeightTable(nil), 0.15)

	agg := integrator.Integrate("amp-1", nil, models.RegimeRanging)

	assert.Equal(t, models.ActionHold, agg.Action)
	assert.Zero(t, agg.Confidence)
	assert.Equal(t, "no module signals", agg.Reasoning)
}

func TestIntegrateContributionsSortedByModule(t *testing.T) {
	table := NewWeightTable(map[string]map[string]float64{
		string(models.RegimeRanging): {"a": 0.4, "b": 0.3, "c": 0.3},
	})
	integrator := New(table, 0.15)

	agg := integrator.Integrate("amp-1", []models.ModuleSignal{
		signal("c", models.ActionBuy, 1, 1),
		signal("a", models.ActionBuy, 1, 1),
		signal("b", models.ActionBuy, 1, 1),
	}, models.RegimeRanging)

	require.Len(t, agg.Contributions, 3)
	assert.Equal(t, "a", agg.Contributions[0].ModuleID)
	assert.Equal(t, "b", agg.Contributions[1].ModuleID)
	assert.Equal(t, "c", agg.Contributions[2].ModuleID)
}
