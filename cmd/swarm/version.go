package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=..." at release time
var version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the swarm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "swarm %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
