// Package cmd defines the crepilot command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "crepilot",
	Short: "Commercial real estate assistant backend",
	Long: `crepilot serves the commercial real estate assistant API:
streaming chat with analysis tools, document ingestion, and
retrieval over the ingested documents.

Running crepilot without a subcommand starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}
