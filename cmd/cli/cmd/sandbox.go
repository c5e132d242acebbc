package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox <job-id> <instance>",
	Short: "List an instance's sandbox files",
	Long: `List the sandbox files of an instance's current run on its host. Pass
--task-id to browse the sandbox of an earlier run instead.

Example:
  taskctl sandbox 1b4e28ba-2fa1-11ed-a261-0242ac120002 0
  taskctl sandbox 1b4e28ba-2fa1-11ed-a261-0242ac120002 0 --task-id 1b4e28ba-2fa1-11ed-a261-0242ac120002-0-1`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		instanceID, err := parseInstanceArg(args[1])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		taskID, _ := cmd.Flags().GetString("task-id")

		client := NewTaskClient(viper.GetString("url"))
		result, err := client.BrowseSandbox(args[0], instanceID, taskID)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("Host: %s\n", result.Hostname)
		if len(result.Paths) == 0 {
			cmd.Println("No files found")
			return
		}
		for _, p := range result.Paths {
			cmd.Println(p)
		}
	},
}

func init() {
	sandboxCmd.Flags().String("task-id", "", "Browse a specific run instead of the current one")

	rootCmd.AddCommand(sandboxCmd)
}
