package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crewd",
	Short: "Multi-agent task coordination daemon",
	Long: `crewd coordinates a crew of specialized agents over a shared broker.

Submitted tasks are routed by the orchestrator: simple requests run as a
single agent's Think-Act-Observe loop, complex requests are decomposed into
sub-tasks fanned out to specialist personas and aggregated into one answer.

Agents communicate through per-agent inbox queues, a broadcast channel, and
task-scoped shared context, with every message audited.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}
