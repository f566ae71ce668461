package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/disparity"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blockmatch version %s (SAD lanes: %s x%d)\n",
			version, disparity.ActiveSADBackend, disparity.ActiveSADBackend.LaneWidth())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
