package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskplane/pkg/api"
)

var queryCmd = &cobra.Command{
	Use:   "query <job-id>",
	Short: "Query a job's instances by state, name or host",
	Long: `Query a job's instances with filters. Filters of the same kind are OR'd,
different kinds are AND'd. Results are paginated; pass the printed token
to --token to fetch the next page.

Example:
  taskctl query 1b4e28ba-2fa1-11ed-a261-0242ac120002 --states RUNNING,FAILED
  taskctl query 1b4e28ba-2fa1-11ed-a261-0242ac120002 --hosts worker-3 --limit 20`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		states, _ := flags.GetStringSlice("states")
		names, _ := flags.GetStringSlice("names")
		hosts, _ := flags.GetStringSlice("hosts")
		limit, _ := flags.GetUint32("limit")
		token, _ := flags.GetString("token")

		client := NewTaskClient(viper.GetString("url"))
		req := api.QueryTasksRequest{
			States: states,
			Names:  names,
			Hosts:  hosts,
			Limit:  limit,
			Token:  token,
		}

		result, err := client.QueryTasks(args[0], req)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("%d of %d instance(s) matched\n", len(result.Tasks), result.Total)
		for _, t := range result.Tasks {
			cmd.Println("──────────────────────────────")
			printTask(cmd, t)
		}
		if result.NextToken != "" {
			cmd.Printf("\nNext page: --token %s\n", result.NextToken)
		}
	},
}

func init() {
	flags := queryCmd.Flags()
	flags.StringSlice("states", nil, "Only instances in these states")
	flags.StringSlice("names", nil, "Only instances whose task name matches")
	flags.StringSlice("hosts", nil, "Only instances placed on these hosts")
	flags.Uint32("limit", 0, "Maximum instances per page")
	flags.String("token", "", "Pagination token from a previous query")

	rootCmd.AddCommand(queryCmd)
}
