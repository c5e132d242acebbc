package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var eventsCmd = &cobra.Command{
	Use:   "events <job-id> <instance>",
	Short: "Show an instance's event history",
	Long: `Show the append-only event history of an instance, newest first. By
default the most recent runs are returned; narrow to one run with
--run-id.

Example:
  taskctl events 1b4e28ba-2fa1-11ed-a261-0242ac120002 0
  taskctl events 1b4e28ba-2fa1-11ed-a261-0242ac120002 0 --run-id 2`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		instanceID, err := parseInstanceArg(args[1])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		limit, _ := cmd.Flags().GetString("limit")
		runID, _ := cmd.Flags().GetString("run-id")

		client := NewTaskClient(viper.GetString("url"))
		result, err := client.GetEvents(args[0], instanceID, limit, runID)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		if len(result.Events) == 0 {
			cmd.Println("No events found")
			return
		}

		for _, e := range result.Events {
			cmd.Printf("%s  run %d  #%d  %s → goal %s",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.RunID, e.Sequence, e.ActualState, e.GoalState)
			if e.Reason != "" {
				cmd.Printf("  (%s)", e.Reason)
			}
			cmd.Println()
		}
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id> <instance>",
	Short: "Prune an instance's event history",
	Long: `Delete all events of an instance up to and including the given run.
--run-id is required; events of later runs are kept.

Example:
  taskctl events delete 1b4e28ba-2fa1-11ed-a261-0242ac120002 0 --run-id 2`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		instanceID, err := parseInstanceArg(args[1])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		runID, _ := cmd.Flags().GetString("run-id")
		if runID == "" {
			cmd.Println("Error: --run-id is required")
			return
		}

		client := NewTaskClient(viper.GetString("url"))
		if err := client.DeleteEvents(args[0], instanceID, runID); err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("✓ Events pruned up to run %s\n", runID)
	},
}

func init() {
	eventsCmd.Flags().String("limit", "", "Maximum number of runs to return")
	eventsCmd.Flags().String("run-id", "", "Only events of this run")

	eventsDeleteCmd.Flags().String("run-id", "", "Prune events up to and including this run (required)")

	eventsCmd.AddCommand(eventsDeleteCmd)
	rootCmd.AddCommand(eventsCmd)
}
