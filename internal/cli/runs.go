package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"amp-engine/internal/errors"
	"amp-engine/internal/store"
)

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted backtest runs",
	}

	var layerID string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			runs, err := app.Store.ListRuns(cmd.Context(), store.RunFilter{LayerID: layerID, Limit: limit})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No stored runs")
				return nil
			}

			table := NewTable(output, "ID", "Layer", "Created", "State", "Return", "Sharpe", "Trades")
			for _, run := range runs {
				state := string(run.State)
				if run.Cancelled {
					state += " (cancelled)"
				}
				table.AddRow(
					run.ID,
					run.LayerID,
					run.CreatedAt.Format("2006-01-02 15:04"),
					state,
					output.FormatPercent(run.TotalReturn*100),
					fmt.Sprintf("%.2f", run.SharpeRatio),
					fmt.Sprintf("%d", run.TradeCount),
				)
			}
			table.Render()
			return nil
		},
	}
	listCmd.Flags().StringVar(&layerID, "layer", "", "filter by layer id")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's full report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			rec, err := app.Store.GetRun(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, errors.ErrDataNotFound) {
					output.Error("Run %s not found", args[0])
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(rec)
			}

			color.Cyan("📊 Backtest Report - %s", rec.LayerID)
			renderResult(output, rec.Result, rec.InitialCapital)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			if err := app.Store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			output.Success("✓ Deleted run %s", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}
