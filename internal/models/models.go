// Package models provides domain models for the signal-fusion and
// capital-allocation engine.
package models

import (
	"time"
)

// Action represents the direction of a trading signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Score returns the signed score of an action: buy = +1, sell = -1, hold = 0.
func (a Action) Score() float64 {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// MarketBar represents OHLCV data for one symbol and one period.
// Bars are immutable once produced; sequences per symbol are ordered by
// strictly increasing timestamp.
type MarketBar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// IndicatorSet holds the technical indicator values derived from a trailing
// window of bars ending at Timestamp. Indicators that cannot be computed from
// the available history are absent from Values.
type IndicatorSet struct {
	Symbol    string
	Timestamp time.Time
	Values    map[string]float64
}

// Value returns the named indicator value and whether it was computed.
func (s IndicatorSet) Value(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// MarketRegime classifies current market behavior.
type MarketRegime string

const (
	RegimeTrendingUp     MarketRegime = "TRENDING_UP"
	RegimeTrendingDown   MarketRegime = "TRENDING_DOWN"
	RegimeRanging        MarketRegime = "RANGING"
	RegimeHighVolatility MarketRegime = "HIGH_VOLATILITY"
)

// Regimes lists every market regime. The integrator relies on this for
// exhaustive weight-table validation.
var Regimes = []MarketRegime{
	RegimeTrendingUp,
	RegimeTrendingDown,
	RegimeRanging,
	RegimeHighVolatility,
}
