package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
)

var (
	clearBoard string
	clearForce bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every item on the board",
	Long: `Delete every item on the board. OmniFocus is not touched; the next
sync re-creates cards for all eligible tasks.

Destructive, so it refuses to run without --force.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			return fmt.Errorf("refusing to clear the board without --force")
		}
		if NewAdapter == nil {
			return fmt.Errorf("adapter factory not initialized")
		}
		adapter, _, err := NewAdapter(clearBoard)
		if err != nil {
			return err
		}
		clearer, ok := adapter.(board.Clearer)
		if !ok {
			return fmt.Errorf("%s does not support clearing", adapter.Name())
		}

		deleted, err := clearer.ClearBoard(cmd.Context())
		if err != nil {
			return fmt.Errorf("cleared %d items before failing: %w", deleted, err)
		}
		fmt.Printf("deleted %d items from %s\n", deleted, adapter.Name())
		return nil
	},
}

func init() {
	clearCmd.Flags().StringVar(&clearBoard, "board", "", "board to clear (defaults to the configured board)")
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "actually delete; required")
	rootCmd.AddCommand(clearCmd)
}
