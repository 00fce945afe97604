package models

import "time"

// DailyPerformance is one day of an amp's trading history.
type DailyPerformance struct {
	Date   time.Time
	PnL    float64
	Wins   int
	Losses int
	Equity float64
}

// AmpPerformanceMetrics is a read-only projection computed from a trade or
// equity history. Consumed, not owned, by the capital allocator.
type AmpPerformanceMetrics struct {
	AmpID            string
	Sharpe           float64
	CumulativeReturn float64 // fraction, e.g. 0.12 = +12%
	WinRate          float64 // wins / (wins + losses), [0,1]
	AvgWin           float64
	AvgLoss          float64 // absolute value of mean losing PnL
	MaxDrawdown      float64 // peak-to-trough fraction, [0,1]
	CurrentDrawdown  float64
	TradeCount       int
	Days             int
}

// HasTradeHistory reports whether the metrics carry enough closed trades for
// payoff-based sizing such as the Kelly rule.
func (m AmpPerformanceMetrics) HasTradeHistory(minTrades int) bool {
	return m.TradeCount >= minTrades && m.AvgLoss > 0
}
