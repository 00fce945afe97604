package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"amp-engine/internal/config"
	"amp-engine/internal/models"
)

// layerFile is the on-disk form of a layer configuration.
type layerFile struct {
	Layer struct {
		ID     string `mapstructure:"id"`
		UserID string `mapstructure:"user_id"`
		Name   string `mapstructure:"name"`
		Active bool   `mapstructure:"active"`
	} `mapstructure:"layer"`
	Capital  float64 `mapstructure:"capital"`
	Settings struct {
		ConflictResolution string  `mapstructure:"conflict_resolution"`
		CapitalAllocation  string  `mapstructure:"capital_allocation"`
		MaxPositions       int     `mapstructure:"max_positions"`
		MaxExposure        float64 `mapstructure:"max_exposure"`
	} `mapstructure:"settings"`
	Amps []struct {
		AmpID             string            `mapstructure:"amp_id"`
		Priority          int               `mapstructure:"priority"`
		CapitalAllocation float64           `mapstructure:"capital_allocation"`
		Enabled           bool              `mapstructure:"enabled"`
		Settings          map[string]string `mapstructure:"settings"`
	} `mapstructure:"amps"`
}

// LoadLayerFile reads a layer configuration from a YAML or JSON file and
// validates the resulting snapshot.
func LoadLayerFile(path string) (models.LayerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return models.LayerConfig{}, fmt.Errorf("reading layer file: %w", err)
	}

	var file layerFile
	if err := v.Unmarshal(&file); err != nil {
		return models.LayerConfig{}, fmt.Errorf("parsing layer file: %w", err)
	}

	layer := models.LayerConfig{
		Layer: models.AmpLayer{
			ID:     file.Layer.ID,
			UserID: file.Layer.UserID,
			Name:   file.Layer.Name,
			Active: file.Layer.Active,
		},
		Capital: file.Capital,
		Settings: models.LayerSettings{
			LayerID:            file.Layer.ID,
			ConflictResolution: models.ConflictResolutionStrategy(file.Settings.ConflictResolution),
			CapitalAllocation:  models.CapitalAllocationStrategy(file.Settings.CapitalAllocation),
			MaxPositions:       file.Settings.MaxPositions,
			MaxExposure:        file.Settings.MaxExposure,
		},
	}
	for _, amp := range file.Amps {
		layer.Amps = append(layer.Amps, models.LayerAmp{
			LayerID:           file.Layer.ID,
			AmpID:             amp.AmpID,
			Priority:          amp.Priority,
			CapitalAllocation: amp.CapitalAllocation,
			Enabled:           amp.Enabled,
			Settings:          amp.Settings,
		})
	}

	if err := config.ValidateLayerConfig(layer); err != nil {
		return models.LayerConfig{}, err
	}
	return layer, nil
}
