package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var tasksYAML bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the OmniFocus tasks that would be synced",
	Long: `List every flagged OmniFocus task that passes the eligibility rules,
with its child tasks. This reads the local cache only; no board is
contacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if OpenStore == nil {
			return fmt.Errorf("store not initialized")
		}
		store, err := OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		tasks, err := store.EligibleTasks(cmd.Context())
		if err != nil {
			return err
		}

		if tasksYAML {
			return yaml.NewEncoder(os.Stdout).Encode(tasks)
		}

		if len(tasks) == 0 {
			fmt.Println("no eligible tasks")
			return nil
		}
		for _, task := range tasks {
			label := task.Name
			if task.Type != "" {
				label = fmt.Sprintf("%s [%s]", label, task.Type)
			}
			fmt.Printf("%s (%s)\n", label, task.Identifier)
			for _, child := range task.SortedChildren() {
				mark := " "
				if child.Completed {
					mark = "x"
				}
				fmt.Printf("  [%s] %s\n", mark, child.Name)
			}
		}
		fmt.Printf("\n%d tasks\n", len(tasks))
		return nil
	},
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksYAML, "yaml", false, "emit tasks as YAML instead of text")
	rootCmd.AddCommand(tasksCmd)
}
