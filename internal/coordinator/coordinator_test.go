package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/config"
	"amp-engine/internal/errors"
	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
	"amp-engine/internal/strategy"
)

// fixedModule always emits the same action, for driving the pipeline
// deterministically in tests.
type fixedModule struct {
	id         string
	action     models.Action
	confidence float64
}

func (m *fixedModule) ID() string   { return m.id }
func (m *fixedModule) MinBars() int { return 1 }
func (m *fixedModule) Evaluate(history []models.IndicatorSet, bar models.MarketBar) models.ModuleSignal {
	return models.ModuleSignal{
		ModuleID:   m.id,
		Symbol:     bar.Symbol,
		Timestamp:  bar.Timestamp,
		Action:     m.action,
		Confidence: m.confidence,
		Strength:   1,
		Reasoning:  "fixed",
	}
}

func testEngineConfig() *config.Config {
	cfg := config.Default()
	weights := make(map[string]map[string]float64)
	for _, regime := range models.Regimes {
		weights[string(regime)] = map[string]float64{"fixed": 1}
	}
	cfg.Integrator.Weights = weights
	return cfg
}

func testRegistry(action models.Action, confidence float64) *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(&fixedModule{id: "fixed", action: action, confidence: confidence})
	return r
}

func testLayer(symbolCapital float64) models.LayerConfig {
	return models.LayerConfig{
		Layer: models.AmpLayer{ID: "layer-1", UserID: "user-1", Name: "test", Active: true},
		Amps: []models.LayerAmp{{
			LayerID:  "layer-1",
			AmpID:    "amp-a",
			Priority: 1,
			Enabled:  true,
			Settings: map[string]string{"modules": "fixed"},
		}},
		Settings: models.LayerSettings{
			LayerID:            "layer-1",
			ConflictResolution: models.ResolveWeighted,
			CapitalAllocation:  models.AllocateEqual,
		},
		Capital: symbolCapital,
	}
}

func testBars(n int, close float64) []models.MarketBar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketBar, n)
	for i := range bars {
		bars[i] = models.MarketBar{
			Symbol:    "AAPL",
			Timestamp: base.AddDate(0, 0, i),
			Open:      close,
			High:      close * 1.01,
			Low:       close * 0.99,
			Close:     close,
			Volume:    1000,
		}
	}
	return bars
}

func TestEvaluateBuySignalSizedByAllocation(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 0.9), zerolog.Nop())

	result, err := engine.Evaluate(context.Background(), CycleInput{
		Config: testLayer(100000),
		Bars:   testBars(25, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ActionBuy, result.Signal.Action)
	assert.Equal(t, "layer-1", result.Signal.LayerID)
	assert.Equal(t, "AAPL", result.Signal.Symbol)
	// Full allocation backs the single amp: 100000 * 0.9 / 100.
	assert.Equal(t, 900, result.Signal.Quantity)
	assert.InDelta(t, 100000, result.Allocation.Allocated, 1e-6)
	require.Contains(t, result.AmpSignals, "amp-a")
	assert.Equal(t, models.ActionBuy, result.AmpSignals["amp-a"].Action)
}

func TestEvaluateHoldSignalHasZeroQuantity(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionHold, 0.9), zerolog.Nop())

	result, err := engine.Evaluate(context.Background(), CycleInput{
		Config: testLayer(100000),
		Bars:   testBars(25, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ActionHold, result.Signal.Action)
	assert.Zero(t, result.Signal.Quantity)
}

func TestEvaluateRejectsEmptyBars(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 1), zerolog.Nop())

	_, err := engine.Evaluate(context.Background(), CycleInput{Config: testLayer(1000)})
	assert.Error(t, err)
}

func TestEvaluateRejectsInvalidLayer(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 1), zerolog.Nop())

	layer := testLayer(1000)
	layer.Settings.LayerID = "other-layer"

	_, err := engine.Evaluate(context.Background(), CycleInput{
		Config: layer,
		Bars:   testBars(25, 100),
	})
	assert.Error(t, err)
}

func TestEvaluateRejectsInactiveLayer(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 1), zerolog.Nop())

	layer := testLayer(1000)
	layer.Layer.Active = false

	_, err := engine.Evaluate(context.Background(), CycleInput{
		Config: layer,
		Bars:   testBars(25, 100),
	})
	assert.ErrorIs(t, err, errors.ErrLayerInactive)
}

func TestEvaluateCancelledContext(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 1), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Evaluate(ctx, CycleInput{
		Config: testLayer(1000),
		Bars:   testBars(25, 100),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateSymbolsRunsEveryInput(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 0.9), zerolog.Nop())

	inputs := make(map[string]CycleInput)
	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		bars := testBars(25, 100)
		for i := range bars {
			bars[i].Symbol = symbol
		}
		inputs[symbol] = CycleInput{Config: testLayer(30000), Bars: bars}
	}

	results, err := engine.EvaluateSymbols(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for symbol, result := range results {
		assert.Equal(t, symbol, result.Signal.Symbol)
		assert.Equal(t, models.ActionBuy, result.Signal.Action)
	}
}

func TestEvaluateSymbolsEmptyInput(t *testing.T) {
	engine := NewEngine(testEngineConfig(), indicators.NewBuilder(), testRegistry(models.ActionBuy, 1), zerolog.Nop())

	results, err := engine.EvaluateSymbols(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
