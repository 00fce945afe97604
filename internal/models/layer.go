package models

// ConflictResolutionStrategy selects how disagreeing amps are reconciled.
type ConflictResolutionStrategy string

const (
	ResolvePriority   ConflictResolutionStrategy = "priority"
	ResolveConfidence ConflictResolutionStrategy = "confidence"
	ResolveWeighted   ConflictResolutionStrategy = "weighted"
	ResolveVeto       ConflictResolutionStrategy = "veto"
)

// CapitalAllocationStrategy selects how layer capital is split across amps.
type CapitalAllocationStrategy string

const (
	AllocateEqual    CapitalAllocationStrategy = "equal"
	AllocateWeighted CapitalAllocationStrategy = "weighted"
	AllocateDynamic  CapitalAllocationStrategy = "dynamic"
	AllocateKelly    CapitalAllocationStrategy = "kelly"
)

// AmpLayer is a user's collection of amps sharing coordination and
// capital-allocation rules.
type AmpLayer struct {
	ID     string `validate:"required"`
	UserID string `validate:"required"`
	Name   string
	Active bool
}

// LayerAmp is one amp's membership in a layer.
type LayerAmp struct {
	LayerID           string  `validate:"required"`
	AmpID             string  `validate:"required"`
	Priority          int     `validate:"min=1,max=100"` // higher wins priority ties
	CapitalAllocation float64 `validate:"min=0,max=1"`   // fraction, "weighted" mode only
	Enabled           bool
	Settings          map[string]string
}

// LayerSettings holds a layer's coordination and risk configuration.
type LayerSettings struct {
	LayerID            string                     `validate:"required"`
	ConflictResolution ConflictResolutionStrategy `validate:"oneof=priority confidence weighted veto"`
	CapitalAllocation  CapitalAllocationStrategy  `validate:"oneof=equal weighted dynamic kelly"`
	MaxPositions       int                        `validate:"min=0"`
	MaxExposure        float64                    `validate:"min=0,max=1"` // fraction of capital
}

// LayerConfig is the immutable per-cycle snapshot of a layer's configuration.
// The engine reads it at the start of each evaluation cycle and never mutates
// it; configuration changes take effect only on the next cycle.
type LayerConfig struct {
	Layer    AmpLayer      `validate:"required"`
	Amps     []LayerAmp    `validate:"dive"`
	Settings LayerSettings `validate:"required"`
	Capital  float64       `validate:"min=0"`
}

// EnabledAmps returns the enabled amps of the snapshot.
func (c LayerConfig) EnabledAmps() []LayerAmp {
	out := make([]LayerAmp, 0, len(c.Amps))
	for _, a := range c.Amps {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// RiskLimits bound what a backtest or live cycle may do. A breach clips the
// offending signal; it never aborts the run.
type RiskLimits struct {
	MaxOpenPositions int     `mapstructure:"max_open_positions"`
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss"` // absolute currency
	MaxExposure      float64 `mapstructure:"max_exposure"`   // fraction of equity
}
