package cli

import (
	"fmt"
	"sort"
	"strings"

	"amp-engine/internal/backtest"
)

// renderResult prints a full backtest report: summary metrics, per-amp
// attribution, closed trades, risk clips, and the equity curve.
func renderResult(output *Output, result *backtest.Result, startCapital float64) {
	summary := result.Summary

	output.Println()
	output.Bold("Summary")
	if result.Cancelled {
		output.Warning("  Run cancelled; report covers the dates processed")
	}
	endCapital := startCapital
	if n := len(result.EquityCurve); n > 0 {
		endCapital = result.EquityCurve[n-1].Equity
	}
	output.Printf("  Start Capital:    %s\n", FormatCurrency(startCapital))
	output.Printf("  End Capital:      %s\n", FormatCurrency(endCapital))
	output.Printf("  Total Return:     %s\n", output.FormatPercent(summary.CumulativeReturn*100))
	output.Printf("  Sharpe Ratio:     %.2f\n", summary.Sharpe)
	output.Printf("  Max Drawdown:     %.1f%%\n", summary.MaxDrawdown*100)
	output.Printf("  Win Rate:         %.1f%%\n", summary.WinRate*100)
	output.Printf("  Trades:           %d\n", len(result.Trades))
	output.Printf("  Risk Clips:       %d\n", len(result.Clips))
	output.Println()

	if len(result.PerfByAmp) > 0 {
		output.Bold("Per-Amp Attribution")
		table := NewTable(output, "Amp", "Return", "Sharpe", "Win Rate", "Trades")
		for _, ampID := range sortedAmpIDs(result) {
			perf := result.PerfByAmp[ampID]
			table.AddRow(
				ampID,
				output.FormatPercent(perf.CumulativeReturn*100),
				fmt.Sprintf("%.2f", perf.Sharpe),
				fmt.Sprintf("%.1f%%", perf.WinRate*100),
				fmt.Sprintf("%d", perf.TradeCount),
			)
		}
		table.Render()
		output.Println()
	}

	if len(result.Trades) > 0 {
		output.Bold("Trades")
		table := NewTable(output, "Symbol", "Entry", "Exit", "Qty", "PnL", "Reason")
		for _, trade := range result.Trades {
			table.AddRow(
				trade.Symbol,
				trade.EntryTime.Format("2006-01-02"),
				trade.ExitTime.Format("2006-01-02"),
				fmt.Sprintf("%d", trade.Quantity),
				output.FormatPnL(trade.PnL),
				trade.Reason,
			)
		}
		table.Render()
		output.Println()
	}

	output.Bold("Equity Curve")
	equity := make([]float64, len(result.EquityCurve))
	for i, pt := range result.EquityCurve {
		equity[i] = pt.Equity
	}
	drawEquityCurve(output, equity, startCapital)
}

func sortedAmpIDs(result *backtest.Result) []string {
	ids := make([]string, 0, len(result.PerfByAmp))
	for id := range result.PerfByAmp {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func drawEquityCurve(output *Output, equityCurve []float64, startCapital float64) {
	if len(equityCurve) < 2 {
		output.Println("  Insufficient data for equity curve")
		return
	}

	minEquity := equityCurve[0]
	maxEquity := equityCurve[0]
	for _, e := range equityCurve {
		if e < minEquity {
			minEquity = e
		}
		if e > maxEquity {
			maxEquity = e
		}
	}

	padding := (maxEquity - minEquity) * 0.1
	if padding == 0 {
		padding = startCapital * 0.05
	}
	minEquity -= padding
	maxEquity += padding

	width := 40
	height := 8

	chart := make([][]rune, height)
	for i := range chart {
		chart[i] = make([]rune, width)
		for j := range chart[i] {
			chart[i][j] = ' '
		}
	}

	for i := 0; i < len(equityCurve); i++ {
		x := i * width / len(equityCurve)
		y := int((equityCurve[i] - minEquity) / (maxEquity - minEquity) * float64(height-1))
		if y >= 0 && y < height && x >= 0 && x < width {
			chart[height-1-y][x] = '█'
		}
	}

	for i := 0; i < height; i++ {
		label := "          "
		if i == 0 {
			label = fmt.Sprintf("%10.0f", maxEquity)
		} else if i == height-1 {
			label = fmt.Sprintf("%10.0f", minEquity)
		}
		output.Printf("  %s │%s\n", label, string(chart[i]))
	}
	output.Printf("             └%s\n", strings.Repeat("─", width))
}
