// Package config provides configuration management for the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"amp-engine/internal/errors"
	"amp-engine/internal/models"
)

// Config holds all engine configuration. Every tunable the engine consumes
// lives here; nothing numeric is hard-coded in the pipeline itself.
type Config struct {
	Integrator IntegratorConfig  `mapstructure:"integrator"`
	Regime     RegimeConfig      `mapstructure:"regime"`
	Allocation AllocationConfig  `mapstructure:"allocation"`
	Backtest   BacktestConfig    `mapstructure:"backtest"`
	Risk       models.RiskLimits `mapstructure:"risk"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// IntegratorConfig tunes signal fusion.
type IntegratorConfig struct {
	// NeutralBand is the |score| threshold below which the aggregated action
	// is forced to hold, to avoid flip-flopping on weak consensus.
	NeutralBand float64 `mapstructure:"neutral_band"`
	// Weights maps regime -> module id -> weight. Weights must sum to 1 per
	// regime; unknown module ids default to 0.
	Weights map[string]map[string]float64 `mapstructure:"weights"`
}

// RegimeConfig tunes regime classification. Thresholds apply uniformly; they
// are configuration, not per-symbol constants.
type RegimeConfig struct {
	Window int `mapstructure:"window"` // bars per classification
	// TrendSlopeThreshold is the normalized per-bar regression slope above
	// (below the negation of) which the market counts as trending.
	TrendSlopeThreshold float64 `mapstructure:"trend_slope_threshold"`
	// HighVolThreshold is the realized daily volatility above which the
	// regime is high-volatility regardless of trend.
	HighVolThreshold float64 `mapstructure:"high_vol_threshold"`
}

// AllocationConfig tunes capital allocation.
type AllocationConfig struct {
	// KellyMaxFraction caps per-amp Kelly fractions to avoid full-Kelly
	// oversizing.
	KellyMaxFraction float64 `mapstructure:"kelly_max_fraction"`
	// KellyMinTrades is the trade count below which an amp falls back to an
	// equal share under the kelly strategy.
	KellyMinTrades int `mapstructure:"kelly_min_trades"`
}

// BacktestConfig holds simulation fill-model defaults.
type BacktestConfig struct {
	Slippage   float64 `mapstructure:"slippage"`   // fraction of price
	Commission float64 `mapstructure:"commission"` // fraction of notional
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/amp-engine"
	}
	return filepath.Join(home, ".config", "amp-engine")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	// Unmarshal of pure defaults cannot fail
	_ = v.Unmarshal(cfg)
	cfg.Integrator.Weights = DefaultWeights()
	return cfg
}

// Load loads configuration from the specified directory, falling back to
// defaults for anything unset. If configDir is empty, uses the default
// config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing config file is fine; defaults apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Integrator.Weights) == 0 {
		cfg.Integrator.Weights = DefaultWeights()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("integrator.neutral_band", 0.15)
	v.SetDefault("regime.window", 20)
	v.SetDefault("regime.trend_slope_threshold", 0.002)
	v.SetDefault("regime.high_vol_threshold", 0.025)
	v.SetDefault("allocation.kelly_max_fraction", 0.25)
	v.SetDefault("allocation.kelly_min_trades", 10)
	v.SetDefault("backtest.slippage", 0.001)
	v.SetDefault("backtest.commission", 0.0005)
	v.SetDefault("risk.max_open_positions", 10)
	v.SetDefault("risk.max_daily_loss", 0)
	v.SetDefault("risk.max_exposure", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
}

// DefaultWeights returns the built-in regime -> module weight table.
// Trend-following modules dominate trending regimes, mean reversion dominates
// ranging markets, and high volatility favors breakout confirmation.
func DefaultWeights() map[string]map[string]float64 {
	return map[string]map[string]float64{
		string(models.RegimeTrendingUp): {
			"momentum":       0.50,
			"mean_reversion": 0.15,
			"breakout":       0.35,
		},
		string(models.RegimeTrendingDown): {
			"momentum":       0.50,
			"mean_reversion": 0.15,
			"breakout":       0.35,
		},
		string(models.RegimeRanging): {
			"momentum":       0.15,
			"mean_reversion": 0.60,
			"breakout":       0.25,
		},
		string(models.RegimeHighVolatility): {
			"momentum":       0.25,
			"mean_reversion": 0.25,
			"breakout":       0.50,
		},
	}
}

// Validate checks engine tuning for internal consistency.
func (c *Config) Validate() error {
	if c.Integrator.NeutralBand < 0 || c.Integrator.NeutralBand >= 1 {
		return errors.NewConfigError("integrator.neutral_band", c.Integrator.NeutralBand, "must be in [0,1)")
	}
	if c.Regime.Window < 2 {
		return errors.NewConfigError("regime.window", c.Regime.Window, "must be at least 2")
	}
	if c.Regime.HighVolThreshold <= 0 {
		return errors.NewConfigError("regime.high_vol_threshold", c.Regime.HighVolThreshold, "must be positive")
	}
	if c.Allocation.KellyMaxFraction <= 0 || c.Allocation.KellyMaxFraction > 1 {
		return errors.NewConfigError("allocation.kelly_max_fraction", c.Allocation.KellyMaxFraction, "must be in (0,1]")
	}
	if c.Backtest.Slippage < 0 {
		return errors.NewConfigError("backtest.slippage", c.Backtest.Slippage, "must be non-negative")
	}
	if c.Backtest.Commission < 0 {
		return errors.NewConfigError("backtest.commission", c.Backtest.Commission, "must be non-negative")
	}
	return nil
}
