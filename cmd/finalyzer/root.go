package main

import (
	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "finalyzer",
	Short: "Financial document analyzer with LLM-powered insight extraction",
	Long: `Finalyzer analyzes uploaded financial PDFs (10-K, 10-Q, earnings
releases, annual reports) and produces investment-oriented analysis.

Documents are verified, their text extracted, and an LLM analyst
answers the user's query against the document content. Analysis runs
either inline (blocking) or through a job queue with worker processes.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.finalyzer/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "finalyzer home directory (default: ~/.finalyzer)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
