package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// lifecycleCommand builds one of the bulk verbs. They all share the same
// shape: optional --ranges, whole job when omitted.
func lifecycleCommand(use, verb, past, short, long string) *cobra.Command {
	c := &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rangeSpec, _ := cmd.Flags().GetString("ranges")
			ranges, err := parseRanges(rangeSpec)
			if err != nil {
				cmd.Printf("Error: %v\n", err)
				return
			}

			client := NewTaskClient(viper.GetString("url"))
			result, err := client.Lifecycle(args[0], verb, ranges)
			if err != nil {
				printClientError(cmd, err)
				return
			}

			printBulkResult(cmd, past, result)
		},
	}
	c.Flags().String("ranges", "", `Instance ranges, e.g. "0-3,7" (whole job when omitted)`)
	return c
}

func init() {
	rootCmd.AddCommand(lifecycleCommand("start", "start", "started",
		"Start instances of a job",
		`Set the goal state of the selected instances to RUNNING. Instances that
are already running are reported as succeeded without any change.

Example:
  taskctl start 1b4e28ba-2fa1-11ed-a261-0242ac120002
  taskctl start 1b4e28ba-2fa1-11ed-a261-0242ac120002 --ranges 0-3`))

	rootCmd.AddCommand(lifecycleCommand("stop", "stop", "stopped",
		"Stop instances of a job",
		`Set the goal state of the selected instances to KILLED. Running tasks are
killed on their hosts; instances not yet launched are terminated in place.

Example:
  taskctl stop 1b4e28ba-2fa1-11ed-a261-0242ac120002 --ranges 2-5`))

	rootCmd.AddCommand(lifecycleCommand("restart", "restart", "restarted",
		"Restart instances of a job",
		`Kill the current run of the selected instances and launch a fresh run
with an incremented run number.

Example:
  taskctl restart 1b4e28ba-2fa1-11ed-a261-0242ac120002 --ranges 0`))

	rootCmd.AddCommand(lifecycleCommand("refresh", "refresh", "refreshed",
		"Refresh instances to the job's current config",
		`Raise the desired config version of the selected instances to the job's
current version. Instances already at that version are left alone; the
rest are restarted onto the new config.

Example:
  taskctl refresh 1b4e28ba-2fa1-11ed-a261-0242ac120002`))
}
