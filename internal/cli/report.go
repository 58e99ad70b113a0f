package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var reportSince time.Duration

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise recent sync runs from the event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("event log not available")
		}

		since := time.Now().UTC().Add(-reportSince)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			return err
		}

		if metrics.Runs == 0 {
			fmt.Printf("no runs in the last %s\n", reportSince)
			return nil
		}

		fmt.Printf("runs:              %d (%d with failures)\n", metrics.Runs, metrics.RunsWithFailures)
		fmt.Printf("tasks closed:      %d\n", metrics.TasksClosed)
		fmt.Printf("cards created:     %d\n", metrics.CardsCreated)
		fmt.Printf("cards updated:     %d\n", metrics.CardsUpdated)
		fmt.Printf("sub-items created: %d\n", metrics.SubItemsCreated)
		fmt.Printf("tasks skipped:     %d\n", metrics.TasksSkipped)
		fmt.Printf("api requests:      %d (%d bytes)\n", metrics.APIRequests, metrics.BytesTransferred)

		if len(metrics.RunsByBoard) > 0 {
			fmt.Println("\nby board:")
			boards := make([]string, 0, len(metrics.RunsByBoard))
			for b := range metrics.RunsByBoard {
				boards = append(boards, b)
			}
			sort.Strings(boards)
			for _, b := range boards {
				fmt.Printf("  %-12s %d\n", b, metrics.RunsByBoard[b])
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().DurationVar(&reportSince, "since", 7*24*time.Hour, "how far back to report")
	rootCmd.AddCommand(reportCmd)
}
