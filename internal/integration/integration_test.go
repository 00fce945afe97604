// Package integration exercises the full pipeline end to end: layer
// validation, signal evaluation, backtest replay, persistence, and
// re-allocation from the replay's performance.
package integration

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/allocation"
	"amp-engine/internal/backtest"
	"amp-engine/internal/config"
	"amp-engine/internal/coordinator"
	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
	"amp-engine/internal/store"
	"amp-engine/internal/strategy"
)

func trendingBars(symbol string, n int) []models.MarketBar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketBar, n)
	price := 100.0
	for i := range bars {
		// Steady uptrend with a mild oscillation so indicators see texture.
		price += 0.6 + 0.4*math.Sin(float64(i)/3)
		bars[i] = models.MarketBar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      price - 0.3,
			High:      price + 0.8,
			Low:       price - 0.8,
			Close:     price,
			Volume:    int64(1000 + 50*i),
		}
	}
	return bars
}

func demoLayer() models.LayerConfig {
	return models.LayerConfig{
		Layer: models.AmpLayer{ID: "layer-demo", UserID: "user-demo", Name: "demo", Active: true},
		Amps: []models.LayerAmp{
			{
				LayerID:  "layer-demo",
				AmpID:    "amp-trend",
				Priority: 20,
				Enabled:  true,
				Settings: map[string]string{"modules": "momentum, breakout"},
			},
			{
				LayerID:  "layer-demo",
				AmpID:    "amp-range",
				Priority: 10,
				Enabled:  true,
				Settings: map[string]string{"modules": "mean_reversion"},
			},
		},
		Settings: models.LayerSettings{
			LayerID:            "layer-demo",
			ConflictResolution: models.ResolveWeighted,
			CapitalAllocation:  models.AllocateEqual,
		},
		Capital: 100000,
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Default()
	layer := demoLayer()
	require.NoError(t, config.ValidateLayerConfig(layer))

	coord := coordinator.NewEngine(cfg, indicators.NewBuilder(), strategy.NewRegistry(), zerolog.Nop())
	engine := backtest.NewEngine(coord, zerolog.Nop())

	bars := map[string][]models.MarketBar{
		"AAPL": trendingBars("AAPL", 60),
		"MSFT": trendingBars("MSFT", 60),
	}
	runCfg := backtest.Config{
		Layer:      layer,
		Bars:       bars,
		Slippage:   cfg.Backtest.Slippage,
		Commission: cfg.Backtest.Commission,
		Risk:       models.RiskLimits{MaxOpenPositions: 10, MaxExposure: 1.0},
	}

	result, err := engine.Run(ctx, runCfg)
	require.NoError(t, err)
	require.Equal(t, backtest.StateCompleted, result.State)
	require.False(t, result.Cancelled)

	// Every replayed day reports equity; the curve spans the full history.
	assert.Len(t, result.EquityCurve, 60)
	assert.Len(t, result.DrawdownCurve, 60)
	for _, amp := range layer.Amps {
		require.Contains(t, result.PerfByAmp, amp.AmpID)
		assert.Equal(t, 60, result.PerfByAmp[amp.AmpID].Days)
	}

	// Persist the run and read it back intact.
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	rec := &store.RunRecord{
		ID:             "layer-demo-20240102",
		LayerID:        layer.Layer.ID,
		CreatedAt:      time.Now().UTC(),
		Start:          bars["AAPL"][0].Timestamp,
		End:            bars["AAPL"][59].Timestamp,
		InitialCapital: layer.Capital,
		Result:         result,
	}
	require.NoError(t, s.SaveRun(ctx, rec))

	loaded, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, len(result.Trades), len(loaded.Result.Trades))
	assert.Equal(t, len(result.EquityCurve), len(loaded.Result.EquityCurve))
	assert.InDelta(t, result.Summary.CumulativeReturn, loaded.Result.Summary.CumulativeReturn, 1e-9)

	// The replay's per-amp metrics feed the next allocation cycle.
	alloc := allocation.New(cfg.Allocation).Allocate(
		layer.Layer.ID, layer.Capital, layer.Amps, models.AllocateDynamic, result.PerfByAmp)

	var total float64
	for _, granted := range alloc.Allocations {
		assert.GreaterOrEqual(t, granted.Amount, 0.0)
		total += granted.Amount
	}
	assert.LessOrEqual(t, total, layer.Capital+1e-6)
	assert.Len(t, alloc.Allocations, 2)
}

func TestPipelineCancellationMidRun(t *testing.T) {
	cfg := config.Default()
	coord := coordinator.NewEngine(cfg, indicators.NewBuilder(), strategy.NewRegistry(), zerolog.Nop())
	engine := backtest.NewEngine(coord, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx, backtest.Config{
		Layer: demoLayer(),
		Bars:  map[string][]models.MarketBar{"AAPL": trendingBars("AAPL", 60)},
	})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, backtest.StateCompleted, result.State)
}
