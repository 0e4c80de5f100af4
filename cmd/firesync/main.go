package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "firesync",
		Short: "Wildfire incident and hotspot map synchronizer",
		Long: `firesync fetches wildfire incident perimeters and satellite hotspots,
normalizes them into map entities and keeps a rendering surface in sync
with the resulting layer state.`,
		SilenceUsage: true,
	}

	addServeCmd(rootCmd)
	addNormalizeCmd(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
