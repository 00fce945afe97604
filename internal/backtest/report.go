// Package backtest replays the full coordination pipeline over historical
// bars, deterministically: identical bars and configuration always produce
// bit-identical equity curves.
package backtest

import (
	"sort"
	"time"

	"amp-engine/internal/models"
)

// State is the lifecycle of one backtest run.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// Trade is one closed round trip.
type Trade struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	PnL        float64
	PnLPercent float64
	Reason     string

	// backers carries the entry attribution weights through to close.
	backers map[string]float64
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// DrawdownPoint is one point of the drawdown curve.
type DrawdownPoint struct {
	Timestamp time.Time
	Drawdown  float64 // fraction of peak
}

// ClipRecord documents a risk-limit clip: the intent before and after.
type ClipRecord struct {
	Timestamp   time.Time
	Symbol      string
	Rule        string
	OriginalQty int
	ClippedQty  int
	Detail      string
}

// Result is the full output of a run. When Cancelled is true the curves and
// metrics cover the dates processed before cancellation and remain a valid,
// consistent report.
type Result struct {
	State         State
	Cancelled     bool
	EquityCurve   []EquityPoint
	DrawdownCurve []DrawdownPoint
	Trades        []Trade
	Clips         []ClipRecord
	// Summary holds the layer-level report metrics, produced by the
	// performance calculator from the run's daily history.
	Summary models.AmpPerformanceMetrics
	// PerfByAmp carries the final trailing metrics per amp.
	PerfByAmp map[string]models.AmpPerformanceMetrics
}

// dailyHistory accumulates per-day records for the performance calculator.
type dailyHistory struct {
	days []models.DailyPerformance
}

func (h *dailyHistory) append(date time.Time, pnl float64, wins, losses int, equity float64) {
	h.days = append(h.days, models.DailyPerformance{
		Date:   date,
		PnL:    pnl,
		Wins:   wins,
		Losses: losses,
		Equity: equity,
	})
}

// sortedSymbols returns the bar map's keys in ascending order, the iteration
// order every run uses so results are reproducible.
func sortedSymbols(bars map[string][]models.MarketBar) []string {
	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
