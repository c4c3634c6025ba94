package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trackstyler/server"
)

var rootCmd = &cobra.Command{
	Use:   "trackstyler",
	Short: "TrackStyler edits audio metadata and converts between formats.",
	Run: func(cmd *cobra.Command, args []string) {
		// With no subcommand, start the server.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
