package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

var lanesBoard string

var lanesCmd = &cobra.Command{
	Use:   "lanes",
	Short: "Print the board's lanes and their ids",
	Long: `Print the board's lane/column hierarchy with the ids used in
configuration (default_drop_bucket, completed_buckets, card type
bucket overrides).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewAdapter == nil {
			return fmt.Errorf("adapter factory not initialized")
		}
		adapter, bc, err := NewAdapter(lanesBoard)
		if err != nil {
			return err
		}
		completed := make(map[string]bool, len(bc.CompletedBuckets))
		for _, id := range bc.CompletedBuckets {
			completed[id] = true
		}
		lister, ok := adapter.(board.BucketLister)
		if !ok {
			return fmt.Errorf("%s does not support listing lanes", adapter.Name())
		}

		table, err := lister.ListBuckets(cmd.Context())
		if err != nil {
			return err
		}

		table.Walk(func(depth int, b models.Bucket) {
			marker := ""
			if b.DefaultDrop || b.ID == bc.DefaultDropBucket {
				marker = " (default drop)"
			}
			if completed[b.ID] {
				marker += " (completed)"
			}
			fmt.Printf("%s%s: %s%s\n", strings.Repeat("  ", depth), b.ID, b.Name, marker)
		})
		return nil
	},
}

func init() {
	lanesCmd.Flags().StringVar(&lanesBoard, "board", "", "board to inspect (defaults to the configured board)")
	rootCmd.AddCommand(lanesCmd)
}
