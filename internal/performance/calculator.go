// Package performance derives trailing performance metrics from trade and
// equity histories. Metrics are a pure projection of the input: the same
// history always yields the same numbers, and nothing is cached between
// calls.
package performance

import (
	"math"

	"amp-engine/internal/models"
)

// annualization converts daily return statistics to annual terms assuming
// 252 trading days.
const annualization = 252

// Calculator computes AmpPerformanceMetrics from daily histories.
type Calculator struct{}

// NewCalculator creates a performance calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute derives metrics from an ordered daily history. Empty or
// single-point histories return zeroed metrics; every division below is
// guarded so the calculator never fails on degenerate input.
func (c *Calculator) Compute(ampID string, history []models.DailyPerformance) models.AmpPerformanceMetrics {
	metrics := models.AmpPerformanceMetrics{
		AmpID: ampID,
		Days:  len(history),
	}
	if len(history) == 0 {
		return metrics
	}

	var wins, losses int
	var winTotal, lossTotal float64
	for _, day := range history {
		wins += day.Wins
		losses += day.Losses
		if day.PnL > 0 {
			winTotal += day.PnL
		} else {
			lossTotal += -day.PnL
		}
	}
	metrics.TradeCount = wins + losses
	if wins+losses > 0 {
		metrics.WinRate = float64(wins) / float64(wins+losses)
	}
	if wins > 0 {
		metrics.AvgWin = winTotal / float64(wins)
	}
	if losses > 0 {
		metrics.AvgLoss = lossTotal / float64(losses)
	}

	first, last := history[0].Equity, history[len(history)-1].Equity
	if first > 0 {
		metrics.CumulativeReturn = (last - first) / first
	}

	metrics.Sharpe = sharpe(history)
	metrics.MaxDrawdown, metrics.CurrentDrawdown = Drawdown(equitySeries(history))
	return metrics
}

func equitySeries(history []models.DailyPerformance) []float64 {
	equity := make([]float64, len(history))
	for i, day := range history {
		equity[i] = day.Equity
	}
	return equity
}

// sharpe is the mean daily return over its standard deviation, annualized by
// √252. Histories too short to have a return spread yield zero.
func sharpe(history []models.DailyPerformance) float64 {
	if len(history) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (history[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(annualization)
}

// Drawdown returns the maximum and final peak-to-trough fractional declines
// of an equity curve.
func Drawdown(equity []float64) (maxDD, currentDD float64) {
	if len(equity) == 0 {
		return 0, 0
	}

	peak := equity[0]
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
			currentDD = dd
		}
	}
	return maxDD, currentDD
}
