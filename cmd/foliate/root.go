package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "foliate",
	Short: "PDF-to-EPUB conversion service with vision-model OCR",
	Long: `Foliate converts scanned PDF books into EPUB files using a local
vision-language model for OCR.

Each uploaded PDF becomes a job: pages are rendered, OCR'd with bounded
concurrency against an Ollama-compatible service, checkpointed per page,
and assembled into an EPUB. Progress streams over SSE with reconnect
replay, and failed pages can be retried without redoing the rest.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.foliate/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "foliate home directory (default: ~/.foliate)",
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
