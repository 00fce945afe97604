// Package coordinator runs one full evaluation cycle for a (layer, symbol)
// pair: strategy modules feed the integrator, the resolver reconciles the
// amps, and the allocator sizes the outcome. A cycle is one synchronous
// computation over immutable inputs; configuration changes only take effect
// on the next cycle.
package coordinator

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"amp-engine/internal/allocation"
	"amp-engine/internal/config"
	"amp-engine/internal/errors"
	"amp-engine/internal/integrator"
	"amp-engine/internal/logging"
	"amp-engine/internal/models"
	"amp-engine/internal/regime"
	"amp-engine/internal/resolver"
	"amp-engine/internal/strategy"
)

// IndicatorSource computes indicator sets for a bar history.
type IndicatorSource interface {
	Compute(bars []models.MarketBar) []models.IndicatorSet
}

// CycleInput is everything one evaluation cycle reads. The engine treats all
// of it as read-only for the duration of the cycle.
type CycleInput struct {
	Config models.LayerConfig
	// Bars is the symbol's history up to and including the current bar,
	// timestamp-ascending.
	Bars []models.MarketBar
	// PerfByAmp is the trailing performance snapshot for dynamic and kelly
	// allocation. Missing amps degrade to neutral metrics.
	PerfByAmp map[string]models.AmpPerformanceMetrics
	// HasPosition tells the veto rule whether a sell closes something.
	HasPosition bool
}

// CycleResult is the outcome of one evaluation cycle.
type CycleResult struct {
	Signal     models.CoordinatedSignal
	Allocation models.PortfolioAllocation
	Regime     models.MarketRegime
	// AmpSignals preserves each amp's aggregated signal for auditing.
	AmpSignals map[string]models.AggregatedSignal
}

// Engine wires the pipeline stages together.
type Engine struct {
	cfg        *config.Config
	indicators IndicatorSource
	registry   *strategy.Registry
	detector   *regime.Detector
	integrator *integrator.Integrator
	resolver   *resolver.Resolver
	allocator  *allocation.Allocator
	logger     zerolog.Logger

	locks *KeyedLocks
}

// NewEngine creates a coordination engine from configuration.
func NewEngine(cfg *config.Config, indicators IndicatorSource, registry *strategy.Registry, logger zerolog.Logger) *Engine {
	weights := integrator.NewWeightTable(cfg.Integrator.Weights)
	return &Engine{
		cfg:        cfg,
		indicators: indicators,
		registry:   registry,
		detector:   regime.NewDetector(cfg.Regime),
		integrator: integrator.New(weights, cfg.Integrator.NeutralBand),
		resolver:   resolver.New(cfg.Integrator.NeutralBand),
		allocator:  allocation.New(cfg.Allocation),
		logger:     logger,
		locks:      NewKeyedLocks(),
	}
}

// Evaluate runs one cycle while holding the (layer, symbol) lock, so at most
// one coordinated decision per pair is ever in flight. Concurrent market
// updates for the same pair serialize here; different pairs run in parallel.
func (e *Engine) Evaluate(ctx context.Context, in CycleInput) (CycleResult, error) {
	if len(in.Bars) == 0 {
		return CycleResult{}, fmt.Errorf("evaluate: no bars supplied")
	}
	if err := config.ValidateLayerConfig(in.Config); err != nil {
		return CycleResult{}, err
	}
	if !in.Config.Layer.Active {
		return CycleResult{}, errors.Wrapf(errors.ErrLayerInactive, "layer %s", in.Config.Layer.ID)
	}

	key := in.Config.Layer.ID + "/" + in.Bars[0].Symbol
	unlock := e.locks.Lock(key)
	defer unlock()

	select {
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	default:
	}

	return e.evaluateLocked(in), nil
}

// evaluateLocked is the pure pipeline; callers hold the pair lock.
func (e *Engine) evaluateLocked(in CycleInput) CycleResult {
	bar := in.Bars[len(in.Bars)-1]
	sets := e.indicators.Compute(in.Bars)
	marketRegime := e.detector.Classify(in.Bars)
	enabled := in.Config.EnabledAmps()

	ampSignals := make(map[string]models.AggregatedSignal, len(enabled))
	for _, amp := range enabled {
		modules := e.registry.ForAmp(amp)
		signals := make([]models.ModuleSignal, 0, len(modules))
		for _, m := range modules {
			signals = append(signals, m.Evaluate(sets, bar))
		}
		ampSignals[amp.AmpID] = e.integrator.Integrate(amp.AmpID, signals, marketRegime)
	}

	alloc := e.allocator.Allocate(
		in.Config.Layer.ID,
		in.Config.Capital,
		in.Config.Amps,
		in.Config.Settings.CapitalAllocation,
		in.PerfByAmp,
	)

	signal := e.resolver.Resolve(resolver.Input{
		LayerID:     in.Config.Layer.ID,
		Symbol:      bar.Symbol,
		Signals:     ampSignals,
		Amps:        enabled,
		Shares:      allocation.Shares(alloc),
		HasPosition: in.HasPosition,
	}, in.Config.Settings.ConflictResolution)

	signal.Quantity = sizeSignal(signal, alloc, bar.Close)

	logging.LogSignal(e.logger, signal.LayerID, signal.Symbol,
		string(signal.Action), signal.Confidence, signal.Resolution.Conflicts)

	return CycleResult{
		Signal:     signal,
		Allocation: alloc,
		Regime:     marketRegime,
		AmpSignals: ampSignals,
	}
}

// sizeSignal converts the capital behind the winning side into a share count:
// the summed allocation of amps voting with the coordinated action, scaled by
// confidence, divided by price and floored. Hold signals stay at zero.
func sizeSignal(signal models.CoordinatedSignal, alloc models.PortfolioAllocation, price float64) int {
	if signal.Action == models.ActionHold || price <= 0 {
		return 0
	}

	var backing float64
	for _, amp := range signal.Amps {
		if amp.Action == signal.Action {
			if result, ok := alloc.ForAmp(amp.AmpID); ok {
				backing += result.Amount
			}
		}
	}
	if backing == 0 {
		// Nothing voted with the final action (weighted votes can land this
		// way); fall back to the full allocated pool.
		backing = alloc.Allocated
	}

	return int(math.Floor(backing * signal.Confidence / price))
}
