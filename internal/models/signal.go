package models

import "time"

// ModuleSignal is the verdict of a single strategy module for one bar.
// Created fresh per evaluation; never mutated.
type ModuleSignal struct {
	ModuleID   string
	Symbol     string
	Timestamp  time.Time
	Action     Action
	Confidence float64 // [0,1]
	Strength   float64 // [0,1], conviction magnitude independent of confidence
	Reasoning  string
}

// SignalContribution records how one module's signal entered an aggregate,
// for auditability.
type SignalContribution struct {
	ModuleID string
	Signal   ModuleSignal
	Weight   float64
	Applied  float64 // confidence * strength * weight, signed by action
}

// AggregatedSignal is the fused verdict of all active strategy modules of one
// amp for one symbol and one evaluation cycle.
type AggregatedSignal struct {
	AmpID         string
	Symbol        string
	Timestamp     time.Time
	Action        Action
	Confidence    float64
	Score         float64 // signed weighted vote before thresholding
	Regime        MarketRegime
	Contributions []SignalContribution
	Reasoning     string
}

// Resolution records how a coordinated signal was decided.
type Resolution struct {
	Method    ConflictResolutionStrategy
	Conflicts bool
	Reasoning string
}

// AmpWeight records the weight one amp carried in a coordinated decision.
type AmpWeight struct {
	AmpID  string
	Action Action
	Weight float64
}

// CoordinatedSignal is the single trade decision for a (layer, symbol) pair
// after resolving every enabled amp's opinion. Quantity is zero until sizing
// is applied by the capital allocator.
type CoordinatedSignal struct {
	LayerID    string
	Symbol     string
	Timestamp  time.Time
	Action     Action
	Quantity   int
	Confidence float64
	Amps       []AmpWeight
	Resolution Resolution
}
