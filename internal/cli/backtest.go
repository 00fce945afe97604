package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"amp-engine/internal/backtest"
	"amp-engine/internal/coordinator"
	"amp-engine/internal/indicators"
	"amp-engine/internal/models"
	"amp-engine/internal/store"
	"amp-engine/internal/strategy"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the coordination pipeline over historical bars",
	}
	cmd.AddCommand(newBacktestRunCmd(app))
	cmd.AddCommand(newBacktestCompareCmd(app))
	return cmd
}

func newBacktestRunCmd(app *App) *cobra.Command {
	var layerPath, barsPath, startStr, endStr string
	var noSave bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest for one layer",
		Long: `Replays the full pipeline over a CSV of historical bars and reports the
equity curve, trades, and risk clips. The run is persisted unless --no-save
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			layer, bars, start, end, err := loadBacktestInputs(layerPath, barsPath, startStr, endStr)
			if err != nil {
				return err
			}

			engine := newBacktestEngine(app)
			result, err := engine.Run(cmd.Context(), backtest.Config{
				Layer:      layer,
				Bars:       bars,
				Start:      start,
				End:        end,
				Slippage:   app.Config.Backtest.Slippage,
				Commission: app.Config.Backtest.Commission,
				Risk:       app.Config.Risk,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			color.Cyan("📊 Backtest Report - %s", layer.Layer.ID)
			renderResult(output, result, layer.Capital)

			if !noSave && app.Store != nil {
				rec := &store.RunRecord{
					ID:             fmt.Sprintf("%s-%s", layer.Layer.ID, time.Now().UTC().Format("20060102T150405")),
					LayerID:        layer.Layer.ID,
					CreatedAt:      time.Now().UTC(),
					Start:          start,
					End:            end,
					InitialCapital: layer.Capital,
					Result:         result,
				}
				if err := app.Store.SaveRun(cmd.Context(), rec); err != nil {
					output.Warning("Failed to save run: %v", err)
				} else {
					output.Dim("Saved as run %s", rec.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&layerPath, "layer", "", "layer configuration file (yaml or json)")
	cmd.Flags().StringVar(&barsPath, "bars", "", "historical bars CSV file")
	cmd.Flags().StringVar(&startStr, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	cmd.MarkFlagRequired("layer")
	cmd.MarkFlagRequired("bars")
	return cmd
}

// newBacktestCompareCmd replays the same bars once per conflict-resolution
// strategy so their reports can be compared side by side.
func newBacktestCompareCmd(app *App) *cobra.Command {
	var layerPath, barsPath, startStr, endStr string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare conflict-resolution strategies on the same data",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			layer, bars, start, end, err := loadBacktestInputs(layerPath, barsPath, startStr, endStr)
			if err != nil {
				return err
			}

			strategies := []models.ConflictResolutionStrategy{
				models.ResolvePriority,
				models.ResolveConfidence,
				models.ResolveWeighted,
				models.ResolveVeto,
			}

			type comparison struct {
				Strategy    string  `json:"strategy"`
				TotalReturn float64 `json:"total_return"`
				Sharpe      float64 `json:"sharpe"`
				MaxDrawdown float64 `json:"max_drawdown"`
				WinRate     float64 `json:"win_rate"`
				Trades      int     `json:"trades"`
			}
			var rows []comparison

			for _, strat := range strategies {
				runLayer := layer
				runLayer.Settings.ConflictResolution = strat

				engine := newBacktestEngine(app)
				result, err := engine.Run(cmd.Context(), backtest.Config{
					Layer:      runLayer,
					Bars:       bars,
					Start:      start,
					End:        end,
					Slippage:   app.Config.Backtest.Slippage,
					Commission: app.Config.Backtest.Commission,
					Risk:       app.Config.Risk,
				})
				if err != nil {
					return fmt.Errorf("strategy %s: %w", strat, err)
				}
				rows = append(rows, comparison{
					Strategy:    string(strat),
					TotalReturn: result.Summary.CumulativeReturn,
					Sharpe:      result.Summary.Sharpe,
					MaxDrawdown: result.Summary.MaxDrawdown,
					WinRate:     result.Summary.WinRate,
					Trades:      len(result.Trades),
				})
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			color.Cyan("📊 Strategy Comparison - %s", layer.Layer.ID)
			table := NewTable(output, "Strategy", "Return", "Sharpe", "Max DD", "Win Rate", "Trades")
			for _, row := range rows {
				table.AddRow(
					row.Strategy,
					output.FormatPercent(row.TotalReturn*100),
					fmt.Sprintf("%.2f", row.Sharpe),
					fmt.Sprintf("%.1f%%", row.MaxDrawdown*100),
					fmt.Sprintf("%.1f%%", row.WinRate*100),
					fmt.Sprintf("%d", row.Trades),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&layerPath, "layer", "", "layer configuration file (yaml or json)")
	cmd.Flags().StringVar(&barsPath, "bars", "", "historical bars CSV file")
	cmd.Flags().StringVar(&startStr, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("layer")
	cmd.MarkFlagRequired("bars")
	return cmd
}

func newBacktestEngine(app *App) *backtest.Engine {
	coord := coordinator.NewEngine(app.Config, indicators.NewBuilder(), strategy.NewRegistry(), app.Logger)
	return backtest.NewEngine(coord, app.Logger)
}

func loadBacktestInputs(layerPath, barsPath, startStr, endStr string) (models.LayerConfig, map[string][]models.MarketBar, time.Time, time.Time, error) {
	var start, end time.Time

	layer, err := LoadLayerFile(layerPath)
	if err != nil {
		return models.LayerConfig{}, nil, start, end, err
	}
	bars, err := store.LoadBarsCSV(barsPath)
	if err != nil {
		return models.LayerConfig{}, nil, start, end, err
	}
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return models.LayerConfig{}, nil, start, end, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return models.LayerConfig{}, nil, start, end, fmt.Errorf("invalid end date: %w", err)
		}
	}
	return layer, bars, start, end, nil
}
