package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"amp-engine/internal/allocation"
	"amp-engine/internal/logging"
	"amp-engine/internal/models"
)

// newAllocateCmd previews how a layer's capital would split across its amps.
// Without trailing performance, dynamic and kelly degrade to their documented
// fallbacks, so the preview shows the cold-start split.
func newAllocateCmd(app *App) *cobra.Command {
	var layerPath, strategyOverride string
	var capitalOverride float64

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Preview a layer's capital allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			layer, err := LoadLayerFile(layerPath)
			if err != nil {
				return err
			}
			if capitalOverride > 0 {
				layer.Capital = capitalOverride
			}
			strategy := layer.Settings.CapitalAllocation
			if strategyOverride != "" {
				strategy = models.CapitalAllocationStrategy(strategyOverride)
			}

			allocator := allocation.New(app.Config.Allocation)
			alloc := allocator.Allocate(layer.Layer.ID, layer.Capital, layer.Amps, strategy, nil)
			logging.LogAllocation(app.Logger, alloc.LayerID, string(alloc.Strategy), alloc.Total, alloc.Reserved)

			if output.IsJSON() {
				return output.JSON(alloc)
			}

			color.Cyan("💰 Capital Allocation - %s (%s)", alloc.LayerID, alloc.Strategy)
			table := NewTable(output, "Amp", "Amount", "Percent", "Reasoning")
			for _, result := range alloc.Allocations {
				table.AddRow(
					result.AmpID,
					FormatCurrency(result.Amount),
					fmt.Sprintf("%.1f%%", result.Percent),
					result.Reasoning,
				)
			}
			table.Render()
			output.Println()
			output.Printf("  Total:     %s\n", FormatCurrency(alloc.Total))
			output.Printf("  Allocated: %s\n", FormatCurrency(alloc.Allocated))
			output.Printf("  Reserved:  %s\n", FormatCurrency(alloc.Reserved))
			return nil
		},
	}

	cmd.Flags().StringVar(&layerPath, "layer", "", "layer configuration file (yaml or json)")
	cmd.Flags().StringVar(&strategyOverride, "strategy", "", "override allocation strategy (equal, weighted, dynamic, kelly)")
	cmd.Flags().Float64Var(&capitalOverride, "capital", 0, "override layer capital")
	cmd.MarkFlagRequired("layer")
	return cmd
}
