package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags shared by every subcommand
var (
	cfgFile   string
	modelFile string
)

var rootCmd = &cobra.Command{
	Use:   "abridge",
	Short: "Referentially-consistent subset extractor",
	Long: `abridge walks foreign-key relations breadth-first from a set of
seed rows and accumulates a deduplicated, FK-clean subset of a
relational database.

Features:
  - Work-queue BFS traversal over foreign-key relations
  - Sticky propagation and at-most-once deduplication
  - FK nulling for relations not traversed
  - Deterministic flat-results export`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "abridge.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&modelFile, "model", "",
		"Path to extraction model file (overrides config)")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// GetModelFile returns the model file override, or "" if unset.
func GetModelFile() string {
	return modelFile
}
