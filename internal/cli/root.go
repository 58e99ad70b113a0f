package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "ofkb",
	Short: "Sync flagged OmniFocus tasks to a kanban board",
	Long: `ofkb mirrors flagged OmniFocus tasks onto a kanban board (LeanKit,
KanbanFlow, Trello, or Zenkit) and flows completions back the other way:
cards moved into a done column close their OmniFocus tasks on the next
run.

Cards are correlated with tasks through an annotation carrying the
OmniFocus persistent identifier, so renames on either side never create
duplicates.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ofkb %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
