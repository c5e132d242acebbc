package cmd

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list <job-id>",
	Short: "List a job's instances",
	Long: `List the runtime state of a job's instances. Use --from and --to to
limit the listing to an instance range.

Example:
  taskctl list 1b4e28ba-2fa1-11ed-a261-0242ac120002
  taskctl list 1b4e28ba-2fa1-11ed-a261-0242ac120002 --from 0 --to 10`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		client := NewTaskClient(viper.GetString("url"))
		result, err := client.ListTasks(args[0], from, to)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		if len(result.Tasks) == 0 {
			cmd.Println("No instances found")
			return
		}

		ids := make([]uint32, 0, len(result.Tasks))
		for id := range result.Tasks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		cmd.Printf("%-10s %-12s %-12s %-8s %-20s %s\n", "INSTANCE", "STATE", "GOAL", "RUN", "HOST", "HEALTH")
		for _, id := range ids {
			t := result.Tasks[id]
			host := t.Host
			if host == "" {
				host = "-"
			}
			health := t.Healthy
			if health == "" {
				health = "-"
			}
			cmd.Printf("%-10d %-12s %-12s %-8d %-20s %s\n", t.InstanceID, t.State, t.GoalState, t.RunID, host, health)
		}
	},
}

func init() {
	listCmd.Flags().String("from", "", "First instance to include")
	listCmd.Flags().String("to", "", "Instance to stop before (exclusive)")

	rootCmd.AddCommand(listCmd)
}
