package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Foliate server via HTTP.

These commands require a running server (foliate serve).
Use --server to specify a custom server URL.

Examples:
  foliate api health                  # Check server health
  foliate api jobs create book.pdf    # Upload a PDF and start conversion
  foliate api jobs events <id>        # Follow conversion progress
  foliate api jobs result <id>        # Download the finished EPUB`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Conversion job commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health and swagger at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	// Jobs as subcommand group
	jobsCmd.AddCommand((&endpoints.CreateJobEndpoint{}).Command(getServerURL))
	jobsCmd.AddCommand((&endpoints.ListJobsEndpoint{}).Command(getServerURL))
	jobsCmd.AddCommand((&endpoints.GetJobEndpoint{}).Command(getServerURL))
	jobsCmd.AddCommand((&endpoints.JobEventsEndpoint{}).Command(getServerURL))
	jobsCmd.AddCommand((&endpoints.JobResultEndpoint{}).Command(getServerURL))
	jobsCmd.AddCommand((&endpoints.RetryJobEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(apiCmd)
}
