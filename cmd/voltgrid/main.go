package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voltgrid",
	Short: "VoltGrid - Real-time charging station recommendations",
	Long: `VoltGrid ingests station telemetry, engineers features and scores
stations in a streaming pipeline, and serves ranked per-user charging
recommendations over an HTTP API.

A single binary runs the full node; the pipeline subcommand runs the
stream consumers alone for horizontally scaled deployments.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"VoltGrid version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(migrateCmd)
}
