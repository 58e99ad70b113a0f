package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/observability"
)

var (
	syncBoard   string
	syncDryRun  bool
	syncTimeout time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass against the board",
	Long: `Run one reconciliation pass: close OmniFocus tasks whose cards sit in
a completed column, then create or update cards for every eligible
flagged task.

With --dry-run every planned change is reported but nothing is written
to either side.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewEngine == nil {
			return fmt.Errorf("engine not initialized")
		}

		engine, store, err := NewEngine(syncBoard, syncDryRun)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
		defer cancel()

		report, runErr := engine.Run(ctx)

		// The report is recorded and announced even after a failed run so
		// partial progress is never lost.
		if !syncDryRun && EventLog != nil {
			if err := observability.RecordReport(EventLog, report); err != nil {
				logrus.Warnf("recording run: %v", err)
			}
		}
		if !syncDryRun && Notifier != nil {
			if err := Notifier.Notify(report); err != nil {
				logrus.Warnf("notifying webhook: %v", err)
			}
		}

		if runErr != nil {
			return runErr
		}

		verb := "synced"
		if syncDryRun {
			verb = "would sync"
		}
		fmt.Printf("%s %s: %d closed, %d created, %d updated, %d sub-items, %d skipped (%.1fs, %d requests)\n",
			report.Board, verb,
			report.TasksClosed, report.CardsCreated, report.CardsUpdated,
			report.SubItemsCreated, report.TasksSkipped,
			report.Elapsed, report.APIRequests)
		for _, failure := range report.Failures {
			fmt.Printf("  failed: %s\n", failure)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncBoard, "board", "", "board to sync (defaults to the configured board)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report planned changes without writing anything")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "abort the run after this long")
	rootCmd.AddCommand(syncCmd)
}
