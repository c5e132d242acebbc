package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskplane/pkg/api"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Admit a new job",
	Long: `Admit a new job: every instance is created at INITIALIZED with goal state
RUNNING and converges toward it.

Example:
  taskctl create --name "web" --image "nginx:1.27" --instances 3
  taskctl create --name "worker" --image "python:3.11" --command "python,run.py" --instances 10 --version 1`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		image, _ := flags.GetString("image")
		command, _ := flags.GetStringSlice("command")
		instances, _ := flags.GetUint32("instances")
		version, _ := flags.GetUint64("version")

		url := viper.GetString("url")

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		if image == "" {
			cmd.Println("Error: --image is required")
			return
		}

		client := NewTaskClient(url)
		req := api.CreateJobRequest{
			Name:          name,
			InstanceCount: instances,
			Config: api.TaskConfigBody{
				Name:    name,
				Image:   image,
				Command: command,
				Version: version,
			},
		}

		result, err := client.CreateJob(req)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("✓ Job admitted!\nID: %s\nName: %s\nInstances: %d\n", result.JobID, name, instances)
	},
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("name", "n", "", "Name of the job (required)")
	flags.StringP("image", "i", "", "Container image (required)")
	flags.StringSliceP("command", "c", []string{}, "Command to execute (optional)")
	flags.Uint32("instances", 1, "Number of instances")
	flags.Uint64("version", 1, "Config version to stamp the instances with")

	rootCmd.AddCommand(createCmd)
}
