package backtest

import (
	"time"

	"amp-engine/internal/models"
	"amp-engine/internal/performance"
)

// runState is the mutable bookkeeping of one run: the simulated portfolio,
// per-symbol replay cursors, and per-amp attribution used to feed trailing
// performance back into the allocator.
type runState struct {
	cfg  Config
	calc *performance.Calculator
	book *portfolio

	closes   map[string]float64 // latest known close per symbol
	barIdx   map[string]int     // next bar to consume per symbol
	lastBars map[string]models.MarketBar

	layerHistory dailyHistory
	peak         float64

	dayPnL    float64
	dayWins   int
	dayLosses int
	dayLoss   float64 // realized losses so far today, for max_daily_loss

	ampBase      map[string]float64
	ampCum       map[string]float64
	ampDayPnL    map[string]float64
	ampDayWins   map[string]int
	ampDayLosses map[string]int
	ampHistory   map[string]*dailyHistory
}

func newRunState(cfg Config, calc *performance.Calculator) *runState {
	run := &runState{
		cfg:          cfg,
		calc:         calc,
		book:         newPortfolio(cfg.Layer.Capital, cfg.Slippage, cfg.Commission),
		closes:       make(map[string]float64),
		barIdx:       make(map[string]int),
		lastBars:     make(map[string]models.MarketBar),
		peak:         cfg.Layer.Capital,
		ampBase:      make(map[string]float64),
		ampCum:       make(map[string]float64),
		ampDayPnL:    make(map[string]float64),
		ampDayWins:   make(map[string]int),
		ampDayLosses: make(map[string]int),
		ampHistory:   make(map[string]*dailyHistory),
	}

	// Each amp's attributed equity curve starts from an equal share of layer
	// capital; attribution only moves the PnL on top of that base.
	enabled := cfg.Layer.EnabledAmps()
	if len(enabled) > 0 {
		base := cfg.Layer.Capital / float64(len(enabled))
		for _, amp := range enabled {
			run.ampBase[amp.AmpID] = base
			run.ampHistory[amp.AmpID] = &dailyHistory{}
		}
	}
	return run
}

// advance consumes the symbol's bars up to and including date. Bars strictly
// before date (warmup before the replay range) update the close marks without
// being evaluated; the bar dated exactly date is returned for evaluation.
func (r *runState) advance(symbol string, date time.Time) (models.MarketBar, bool) {
	series := r.cfg.Bars[symbol]
	i := r.barIdx[symbol]
	for i < len(series) && series[i].Timestamp.Before(date) {
		r.consume(series[i])
		i++
	}
	if i < len(series) && series[i].Timestamp.Equal(date) {
		bar := series[i]
		r.consume(bar)
		r.barIdx[symbol] = i + 1
		return bar, true
	}
	r.barIdx[symbol] = i
	return models.MarketBar{}, false
}

func (r *runState) consume(bar models.MarketBar) {
	r.closes[bar.Symbol] = bar.Close
	r.lastBars[bar.Symbol] = bar
}

// history returns every bar consumed so far for the symbol.
func (r *runState) history(symbol string) []models.MarketBar {
	return r.cfg.Bars[symbol][:r.barIdx[symbol]]
}

func (r *runState) beginDay() {
	r.dayPnL, r.dayLoss = 0, 0
	r.dayWins, r.dayLosses = 0, 0
	for id := range r.ampBase {
		r.ampDayPnL[id] = 0
		r.ampDayWins[id] = 0
		r.ampDayLosses[id] = 0
	}
}

// recordTrade books a closed trade into the day's counters and attribution.
func (r *runState) recordTrade(trade Trade, result *Result) {
	result.Trades = append(result.Trades, trade)
	r.dayPnL += trade.PnL
	if trade.PnL > 0 {
		r.dayWins++
	} else {
		r.dayLosses++
		r.dayLoss += -trade.PnL
	}
	r.attribute(trade)
}

// attribute splits a trade's PnL across the amps that backed the entry.
func (r *runState) attribute(trade Trade) {
	backers := trade.backers
	if len(backers) == 0 && len(r.ampBase) > 0 {
		backers = make(map[string]float64, len(r.ampBase))
		for id := range r.ampBase {
			backers[id] = 1.0 / float64(len(r.ampBase))
		}
	}
	for id, share := range backers {
		if _, ok := r.ampBase[id]; !ok {
			continue
		}
		r.ampDayPnL[id] += share * trade.PnL
		r.ampCum[id] += share * trade.PnL
		if trade.PnL > 0 {
			r.ampDayWins[id]++
		} else {
			r.ampDayLosses[id]++
		}
	}
}

// closeDay marks the book to the latest closes and appends the day to every
// history curve.
func (r *runState) closeDay(date time.Time, result *Result) {
	equity := r.book.equity(r.closes)
	dd := r.drawdownAt(equity)

	result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: date, Equity: equity})
	result.DrawdownCurve = append(result.DrawdownCurve, DrawdownPoint{Timestamp: date, Drawdown: dd})
	r.layerHistory.append(date, r.dayPnL, r.dayWins, r.dayLosses, equity)

	for id, hist := range r.ampHistory {
		hist.append(date, r.ampDayPnL[id], r.ampDayWins[id], r.ampDayLosses[id], r.ampBase[id]+r.ampCum[id])
	}
}

// settleAmpDay rewrites each amp's final history entry after end-of-run
// closes were attributed on top of the already-flushed day.
func (r *runState) settleAmpDay() {
	for id, hist := range r.ampHistory {
		if len(hist.days) == 0 {
			continue
		}
		day := &hist.days[len(hist.days)-1]
		day.PnL = r.ampDayPnL[id]
		day.Wins = r.ampDayWins[id]
		day.Losses = r.ampDayLosses[id]
		day.Equity = r.ampBase[id] + r.ampCum[id]
	}
}

// drawdownAt tracks the running peak and returns the current drawdown.
func (r *runState) drawdownAt(equity float64) float64 {
	if equity > r.peak {
		r.peak = equity
	}
	if r.peak <= 0 {
		return 0
	}
	return (r.peak - equity) / r.peak
}

// perfSnapshot recomputes each enabled amp's trailing metrics from its
// attributed history. Always derived fresh; nothing is cached across days.
func (r *runState) perfSnapshot(enabled []models.LayerAmp) map[string]models.AmpPerformanceMetrics {
	snapshot := make(map[string]models.AmpPerformanceMetrics, len(enabled))
	for _, amp := range enabled {
		var days []models.DailyPerformance
		if hist, ok := r.ampHistory[amp.AmpID]; ok {
			days = hist.days
		}
		snapshot[amp.AmpID] = r.calc.Compute(amp.AmpID, days)
	}
	return snapshot
}
