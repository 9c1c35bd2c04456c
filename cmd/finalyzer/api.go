package main

import (
	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running finalyzer server via HTTP.

These commands require a running server (finalyzer serve).
Use --server to specify a custom server URL.

Examples:
  finalyzer api health                         # Check server health
  finalyzer api analyze report.pdf             # Submit a document for analysis
  finalyzer api analyze-sync report.pdf        # Analyze and wait for the result
  finalyzer api job <id>                       # Poll an analysis job
  finalyzer api jobs                           # List recent jobs`,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8000", "Server URL",
	)

	for _, ep := range endpoints.All() {
		if cmd := ep.Command(getServerURL); cmd != nil {
			apiCmd.AddCommand(cmd)
		}
	}

	rootCmd.AddCommand(apiCmd)
}
