package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/models"
)

func flatBars(n int) []models.MarketBar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketBar, n)
	for i := range bars {
		bars[i] = models.MarketBar{
			Symbol:    "AAPL",
			Timestamp: base.AddDate(0, 0, i),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1000,
		}
	}
	return bars
}

func TestComputeEmptyInput(t *testing.T) {
	assert.Nil(t, NewBuilder().Compute(nil))
}

func TestComputeFlatSeriesValues(t *testing.T) {
	sets := NewBuilder().Compute(flatBars(60))
	require.Len(t, sets, 60)

	latest := sets[59]
	sma20, ok := latest.Value(SMA20)
	require.True(t, ok)
	assert.InDelta(t, 100, sma20, 1e-9)

	high20, ok := latest.Value(High20)
	require.True(t, ok)
	assert.InDelta(t, 101, high20, 1e-9)

	low20, ok := latest.Value(Low20)
	require.True(t, ok)
	assert.InDelta(t, 99, low20, 1e-9)

	stddev, ok := latest.Value(StdDev20)
	require.True(t, ok)
	assert.InDelta(t, 0, stddev, 1e-9)

	volAvg, ok := latest.Value(VolumeSMA20)
	require.True(t, ok)
	assert.InDelta(t, 1000, volAvg, 1e-9)

	// Constant 2-point bar range pins ATR at 2.
	atr, ok := latest.Value(ATR14)
	require.True(t, ok)
	assert.InDelta(t, 2, atr, 1e-6)
}

func TestComputeWarmupValuesAbsent(t *testing.T) {
	sets := NewBuilder().Compute(flatBars(60))

	// The 20-bar indicators only exist from index 19 on.
	_, ok := sets[18].Value(SMA20)
	assert.False(t, ok)
	_, ok = sets[19].Value(SMA20)
	assert.True(t, ok)

	// SMA50 needs 50 bars.
	_, ok = sets[48].Value(SMA50)
	assert.False(t, ok)
	_, ok = sets[49].Value(SMA50)
	assert.True(t, ok)
}

func TestComputeShortHistoryOmitsLongIndicators(t *testing.T) {
	sets := NewBuilder().Compute(flatBars(12))
	require.Len(t, sets, 12)

	latest := sets[11]
	_, hasSMA10 := latest.Value(SMA10)
	assert.True(t, hasSMA10)
	_, hasSMA20 := latest.Value(SMA20)
	assert.False(t, hasSMA20)
	_, hasRSI := latest.Value(RSI14)
	assert.False(t, hasRSI)
}

func TestLatest(t *testing.T) {
	set, ok := NewBuilder().Latest(flatBars(30))
	require.True(t, ok)
	assert.Equal(t, "AAPL", set.Symbol)
	_, hasSMA20 := set.Value(SMA20)
	assert.True(t, hasSMA20)

	_, ok = NewBuilder().Latest(nil)
	assert.False(t, ok)
}
