package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "Taskctl is a command line tool for operating taskplane jobs and their instances",
	Long: `taskctl is the command-line interface for the taskplane task lifecycle manager.

Taskplane manages long-running job instances: each instance advances through a
launch pipeline toward its goal state, and every accepted transition is kept
in a per-instance event ledger you can inspect run by run.

Common workflows:

  Admit a job with three instances:
    taskctl create --name "web" --image "nginx:1.27" --instances 3

  Inspect one instance:
    taskctl get <job-id> 0

  Stop a range of instances:
    taskctl stop <job-id> --ranges 0-2,5-6

  Restart everything on a new config version:
    taskctl restart <job-id>

  Read an instance's event history:
    taskctl events <job-id> 0 --limit 3

Configuration:
  Set the API endpoint via environment variables or a config file:
    TASKPLANE_URL    API endpoint (default: http://localhost:6262)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".taskctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".taskctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "TASKPLANE_VARNAME"
	viper.SetEnvPrefix("TASKPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.taskctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6262", "Taskplane Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
