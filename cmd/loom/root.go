package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Multi-agent orchestration engine",
	Long: `Loom decomposes a request into a dependency-ordered task plan,
runs each task on an isolated sub-agent with its own conversation and
tool access, and weaves the results back into one answer.

Core capabilities:
- Plans requests into parallelizable task graphs
- Runs bounded pools of concurrent sub-agents
- Compacts long conversations to stay inside the context window
- Detects stuck agents and intervenes with corrective guidance
- Aggregates tools from remote endpoints alongside built-in ones`,
	SilenceUsage: true,
}

var rootConfigPath string

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to a config file (overrides the default search)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(versionCmd)
}
