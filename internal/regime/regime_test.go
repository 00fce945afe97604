package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"amp-engine/internal/config"
	"amp-engine/internal/models"
)

func testDetector() *Detector {
	return NewDetector(config.RegimeConfig{
		Window:              20,
		TrendSlopeThreshold: 0.002,
		HighVolThreshold:    0.025,
	})
}

func barsFromCloses(closes []float64) []models.MarketBar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketBar, len(closes))
	for i, close := range closes {
		bars[i] = models.MarketBar{
			Symbol:    "AAPL",
			Timestamp: base.AddDate(0, 0, i),
			Open:      close,
			High:      close * 1.01,
			Low:       close * 0.99,
			Close:     close,
			Volume:    1000,
		}
	}
	return bars
}

func TestClassifyTrendingUp(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i) // steady climb, low volatility
	}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeTrendingUp, regime)
}

func TestClassifyTrendingDown(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 130 - float64(i)
	}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeTrendingDown, regime)
}

func TestClassifyRangingFlatPrices(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeRanging, regime)
}

func TestClassifyHighVolatilityOverridesTrend(t *testing.T) {
	// Large alternating swings: realized volatility far past the threshold.
	closes := make([]float64, 30)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 108
		}
	}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeHighVolatility, regime)
}

func TestClassifyShortHistoryIsRanging(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeRanging, regime)
}

func TestClassifyUsesOnlyTrailingWindow(t *testing.T) {
	// A long falling prefix followed by a 20-bar climb: only the window
	// counts, so the verdict is trending up.
	closes := make([]float64, 60)
	for i := 0; i < 40; i++ {
		closes[i] = 200 - float64(i)
	}
	for i := 40; i < 60; i++ {
		closes[i] = 160 + float64(i-40)
	}

	regime := testDetector().Classify(barsFromCloses(closes))
	assert.Equal(t, models.RegimeTrendingUp, regime)
}

func TestNormalizedSlopeFlatIsZero(t *testing.T) {
	bars := barsFromCloses([]float64{100, 100, 100, 100})
	assert.Zero(t, normalizedSlope(bars))
}
