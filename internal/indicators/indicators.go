// Package indicators derives per-bar technical indicator values from trailing
// windows of market bars. All computation is deterministic: the same bar
// history always yields the same indicator sets.
package indicators

import (
	"github.com/markcheno/go-talib"

	"amp-engine/internal/models"
)

// Indicator names produced by the Builder. Downstream modules look values up
// by these keys; a missing key means the history was too short to compute it.
const (
	SMA10       = "sma_10"
	SMA20       = "sma_20"
	SMA50       = "sma_50"
	EMA12       = "ema_12"
	EMA26       = "ema_26"
	RSI14       = "rsi_14"
	ATR14       = "atr_14"
	StdDev20    = "stddev_20"
	VolumeSMA20 = "volume_sma_20"
	High20      = "high_20"
	Low20       = "low_20"
)

// Builder computes indicator sets for bar sequences.
type Builder struct{}

// NewBuilder creates a new indicator builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// series describes one indicator output and the first index at which its
// value is meaningful.
type series struct {
	name   string
	values []float64
	warmup int
}

// Compute returns one IndicatorSet per input bar. Bars must belong to a
// single symbol and be ordered by ascending timestamp; the builder does not
// reorder them. Indicators whose warmup window exceeds the available history
// are absent from the early sets rather than zero-filled.
func (b *Builder) Compute(bars []models.MarketBar) []models.IndicatorSet {
	n := len(bars)
	if n == 0 {
		return nil
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		volumes[i] = float64(bar.Volume)
	}

	var all []series
	addSeries := func(name string, period int, f func() []float64) {
		// go-talib zero-fills the warmup prefix; callers must not see those.
		if n >= period {
			all = append(all, series{name: name, values: f(), warmup: period - 1})
		}
	}

	addSeries(SMA10, 10, func() []float64 { return talib.Sma(closes, 10) })
	addSeries(SMA20, 20, func() []float64 { return talib.Sma(closes, 20) })
	addSeries(SMA50, 50, func() []float64 { return talib.Sma(closes, 50) })
	addSeries(EMA12, 12, func() []float64 { return talib.Ema(closes, 12) })
	addSeries(EMA26, 26, func() []float64 { return talib.Ema(closes, 26) })
	addSeries(StdDev20, 20, func() []float64 { return talib.StdDev(closes, 20, 1.0) })
	addSeries(VolumeSMA20, 20, func() []float64 { return talib.Sma(volumes, 20) })
	addSeries(High20, 20, func() []float64 { return talib.Max(highs, 20) })
	addSeries(Low20, 20, func() []float64 { return talib.Min(lows, 20) })

	// RSI and ATR consume one extra bar for the first diff.
	if n >= 15 {
		all = append(all, series{name: RSI14, values: talib.Rsi(closes, 14), warmup: 14})
		all = append(all, series{name: ATR14, values: talib.Atr(highs, lows, closes, 14), warmup: 14})
	}

	sets := make([]models.IndicatorSet, n)
	for i, bar := range bars {
		values := make(map[string]float64)
		for _, s := range all {
			if i >= s.warmup {
				values[s.name] = s.values[i]
			}
		}
		sets[i] = models.IndicatorSet{
			Symbol:    bar.Symbol,
			Timestamp: bar.Timestamp,
			Values:    values,
		}
	}
	return sets
}

// Latest computes the indicator set for the final bar of the history.
func (b *Builder) Latest(bars []models.MarketBar) (models.IndicatorSet, bool) {
	sets := b.Compute(bars)
	if len(sets) == 0 {
		return models.IndicatorSet{}, false
	}
	return sets[len(sets)-1], true
}
