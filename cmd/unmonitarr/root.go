package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	serveCmd := newServeCommand()

	rootCmd := &cobra.Command{
		Use:           "unmonitarr",
		Short:         "Sync Jellyfin watched state to Sonarr and Radarr monitoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newRetryCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
