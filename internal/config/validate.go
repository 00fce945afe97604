package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"amp-engine/internal/models"
)

var validate = validator.New()

// ValidateLayerConfig checks a per-cycle layer snapshot supplied by the
// caller. Structural problems (missing ids, out-of-range priorities) are
// rejected here; soft inconsistencies such as weighted fractions not summing
// to 1 are left for the allocator to normalize.
func ValidateLayerConfig(cfg models.LayerConfig) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("layer config: field %s failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("layer config: %w", err)
	}
	if cfg.Settings.LayerID != cfg.Layer.ID {
		return fmt.Errorf("layer config: settings layer id %q does not match layer %q",
			cfg.Settings.LayerID, cfg.Layer.ID)
	}
	seen := make(map[string]bool, len(cfg.Amps))
	for _, amp := range cfg.Amps {
		if amp.LayerID != cfg.Layer.ID {
			return fmt.Errorf("layer config: amp %q belongs to layer %q, not %q",
				amp.AmpID, amp.LayerID, cfg.Layer.ID)
		}
		if seen[amp.AmpID] {
			return fmt.Errorf("layer config: duplicate amp %q", amp.AmpID)
		}
		seen[amp.AmpID] = true
	}
	return nil
}
