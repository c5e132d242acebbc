package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var getCmd = &cobra.Command{
	Use:   "get <job-id> <instance>",
	Short: "Show one instance's runtime state",
	Long: `Show the persisted runtime snapshot of one instance.

Example:
  taskctl get 1b4e28ba-2fa1-11ed-a261-0242ac120002 0
  taskctl get 1b4e28ba-2fa1-11ed-a261-0242ac120002 0 --cached`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		instanceID, err := parseInstanceArg(args[1])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		cached, _ := cmd.Flags().GetBool("cached")

		client := NewTaskClient(viper.GetString("url"))

		fetch := client.GetTask
		if cached {
			fetch = client.GetTaskCache
		}
		result, err := fetch(args[0], instanceID)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		printTask(cmd, *result)
	},
}

func init() {
	getCmd.Flags().Bool("cached", false, "Read the controller's in-memory snapshot instead of the store")
	rootCmd.AddCommand(getCmd)
}
