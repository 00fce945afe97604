package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"amp-engine/internal/config"
	"amp-engine/internal/coordinator"
	"amp-engine/internal/errors"
	"amp-engine/internal/logging"
	"amp-engine/internal/models"
	"amp-engine/internal/performance"
)

// Config describes one backtest run. Bars map each symbol to its ascending
// history; Start and End bound the replayed range inclusively and may be zero
// to replay everything.
type Config struct {
	Layer      models.LayerConfig
	Bars       map[string][]models.MarketBar
	Start      time.Time
	End        time.Time
	Slippage   float64
	Commission float64
	Risk       models.RiskLimits
}

// Engine replays the coordination pipeline over a historical range. One
// engine runs once; its state moves initialized -> running -> completed, or
// failed on an unrecoverable data defect.
type Engine struct {
	coord  *coordinator.Engine
	calc   *performance.Calculator
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewEngine creates a backtest engine around a coordination engine.
func NewEngine(coord *coordinator.Engine, logger zerolog.Logger) *Engine {
	return &Engine{
		coord:  coord,
		calc:   performance.NewCalculator(),
		logger: logger,
		state:  StateInitialized,
	}
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run executes the backtest. Cancellation is checked once per date-step;
// a cancelled run still returns the consistent partial report. Only data
// defects (non-monotonic timestamps) fail the run.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	e.mu.Lock()
	if e.state != StateInitialized {
		e.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrRunNotInitialized, "engine state %s", e.state)
	}
	e.state = StateRunning
	e.mu.Unlock()

	if err := config.ValidateLayerConfig(cfg.Layer); err != nil {
		e.setState(StateFailed)
		return nil, err
	}
	if !cfg.Layer.Layer.Active {
		e.setState(StateFailed)
		return nil, errors.Wrapf(errors.ErrLayerInactive, "layer %s", cfg.Layer.Layer.ID)
	}
	if err := validateBars(cfg.Bars); err != nil {
		e.setState(StateFailed)
		return nil, err
	}
	cfg.Risk = effectiveRisk(cfg.Risk, cfg.Layer.Settings)

	run := newRunState(cfg, e.calc)
	symbols := sortedSymbols(cfg.Bars)
	dates := dateAxis(cfg)

	result := &Result{State: StateRunning}

	for _, date := range dates {
		select {
		case <-ctx.Done():
			result.Cancelled = true
		default:
		}
		if result.Cancelled {
			break
		}

		run.beginDay()
		for _, symbol := range symbols {
			bar, ok := run.advance(symbol, date)
			if !ok {
				continue // gap: this symbol has no bar today
			}
			e.evaluateBar(ctx, cfg, run, result, symbol, bar)
		}
		run.closeDay(date, result)
	}

	e.finalize(cfg, run, result, symbols)
	e.setState(StateCompleted)
	result.State = StateCompleted
	return result, nil
}

// evaluateBar runs one (layer, symbol) cycle and applies the outcome to the
// simulated portfolio under the configured risk limits.
func (e *Engine) evaluateBar(ctx context.Context, cfg Config, run *runState, result *Result, symbol string, bar models.MarketBar) {
	layerCfg := cfg.Layer
	layerCfg.Capital = run.book.equity(run.closes)

	_, holding := run.book.positions[symbol]
	cycle, err := e.coord.Evaluate(ctx, coordinator.CycleInput{
		Config:      layerCfg,
		Bars:        run.history(symbol),
		PerfByAmp:   run.perfSnapshot(layerCfg.EnabledAmps()),
		HasPosition: holding,
	})
	if err != nil {
		// Context cancellation surfaces at the next date-step check; any
		// other per-bar failure degrades to a no-op for this unit.
		return
	}

	signal := cycle.Signal
	switch signal.Action {
	case models.ActionBuy:
		qty, rerr := clipForRisk(signal.Action, symbol, signal.Quantity, bar.Close,
			cfg.Risk, run.book, run.closes, run.dayLoss)
		if rerr != nil {
			result.Clips = append(result.Clips, ClipRecord{
				Timestamp:   bar.Timestamp,
				Symbol:      symbol,
				Rule:        rerr.Rule,
				OriginalQty: signal.Quantity,
				ClippedQty:  qty,
				Detail:      rerr.Message,
			})
			logging.LogClip(e.logger, symbol, rerr.Rule, signal.Quantity, qty)
		}
		run.book.buy(bar, qty, buyBackers(signal, cycle.Allocation))

	case models.ActionSell:
		if trade := run.book.sellAll(bar, "signal"); trade != nil {
			run.recordTrade(*trade, result)
		}
	}
}

// finalize closes whatever is still open at its last seen bar and builds the
// report through the performance calculator.
func (e *Engine) finalize(cfg Config, run *runState, result *Result, symbols []string) {
	var closingPnL float64
	var wins, losses int
	var closed []Trade
	for _, symbol := range symbols {
		bar, ok := run.lastBars[symbol]
		if !ok {
			continue
		}
		if trade := run.book.sellAll(bar, "end_of_backtest"); trade != nil {
			closed = append(closed, *trade)
			closingPnL += trade.PnL
			if trade.PnL > 0 {
				wins++
			} else {
				losses++
			}
		}
	}
	for _, trade := range closed {
		run.attribute(trade)
		result.Trades = append(result.Trades, trade)
	}

	if len(closed) > 0 && len(result.EquityCurve) > 0 {
		// Settle the final point at the post-close equity.
		last := len(result.EquityCurve) - 1
		equity := run.book.equity(run.closes)
		result.EquityCurve[last].Equity = equity
		result.DrawdownCurve[last].Drawdown = run.drawdownAt(equity)

		day := &run.layerHistory.days[len(run.layerHistory.days)-1]
		day.PnL += closingPnL
		day.Wins += wins
		day.Losses += losses
		day.Equity = equity
		run.settleAmpDay()
	}

	result.Summary = e.calc.Compute(cfg.Layer.Layer.ID, run.layerHistory.days)
	result.PerfByAmp = run.perfSnapshot(cfg.Layer.EnabledAmps())
}

// effectiveRisk merges the layer's own risk settings into the engine-level
// limits. A layer can only tighten what the engine allows: wherever both
// sides set a bound, the stricter one wins.
func effectiveRisk(base models.RiskLimits, settings models.LayerSettings) models.RiskLimits {
	out := base
	if settings.MaxPositions > 0 && (out.MaxOpenPositions == 0 || settings.MaxPositions < out.MaxOpenPositions) {
		out.MaxOpenPositions = settings.MaxPositions
	}
	if settings.MaxExposure > 0 && (out.MaxExposure == 0 || settings.MaxExposure < out.MaxExposure) {
		out.MaxExposure = settings.MaxExposure
	}
	return out
}

// validateBars rejects non-monotonic bar sequences, the one unrecoverable
// data defect.
func validateBars(bars map[string][]models.MarketBar) error {
	for _, symbol := range sortedSymbols(bars) {
		series := bars[symbol]
		for i := 1; i < len(series); i++ {
			if !series[i].Timestamp.After(series[i-1].Timestamp) {
				return errors.NewDataError(symbol, i, "non-monotonic timestamp", nil)
			}
		}
	}
	return nil
}

// dateAxis builds the union of bar timestamps inside the configured range,
// ascending.
func dateAxis(cfg Config) []time.Time {
	seen := make(map[time.Time]bool)
	for _, series := range cfg.Bars {
		for _, bar := range series {
			if !cfg.Start.IsZero() && bar.Timestamp.Before(cfg.Start) {
				continue
			}
			if !cfg.End.IsZero() && bar.Timestamp.After(cfg.End) {
				continue
			}
			seen[bar.Timestamp] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for t := range seen {
		dates = append(dates, t)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// buyBackers extracts the normalized weights of amps that voted with the buy,
// for later PnL attribution. Amps without capital weight share equally.
func buyBackers(signal models.CoordinatedSignal, alloc models.PortfolioAllocation) map[string]float64 {
	backers := make(map[string]float64)
	var total float64
	for _, amp := range signal.Amps {
		if amp.Action != models.ActionBuy {
			continue
		}
		w := amp.Weight
		if result, ok := alloc.ForAmp(amp.AmpID); ok && result.Amount > 0 && alloc.Total > 0 {
			w = result.Amount / alloc.Total
		}
		backers[amp.AmpID] = w
		total += w
	}
	if len(backers) == 0 {
		return backers
	}
	if total == 0 {
		for id := range backers {
			backers[id] = 1.0 / float64(len(backers))
		}
		return backers
	}
	for id := range backers {
		backers[id] /= total
	}
	return backers
}
