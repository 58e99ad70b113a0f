package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/core"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/mcp"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio",
	Long: `Start an MCP server exposing the sync pipeline to AI assistants:
list_eligible_tasks, preview_sync, and get_sync_metrics. The preview
tool always runs dry; the server never writes to a board.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if OpenStore == nil || NewAdapter == nil {
			return fmt.Errorf("services not initialized")
		}

		// One store for the lifetime of the server; MCP sessions are
		// long-lived and the cache handle is cheap to hold.
		store, err := OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		listEligible := func(ctx context.Context) ([]*models.SourceTask, error) {
			return store.EligibleTasks(ctx)
		}
		engines := func(boardName string) (*core.Engine, error) {
			adapter, cfg, err := NewAdapter(boardName)
			if err != nil {
				return nil, err
			}
			return core.NewEngine(store, adapter, adapter.Name(), cfg, true), nil
		}

		server := mcp.NewServer(listEligible, engines, MetricsCalc, appVersion)
		return server.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
