package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/abridge/internal/config"
	"github.com/dbsmedya/abridge/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, schema and extraction model",
	Long: `Validate loads the configuration, connects to the source database,
discovers its schema and resolves the extraction model against it,
without running the engine.

This surfaces the two configuration-error categories spec.md §7
assigns outside the engine: an unreachable/misconfigured database, and
a model referencing an unknown table or column.

Example:
  abridge validate --config abridge.yaml --model model.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ %v\n", err)
		return fmt.Errorf("configuration validation failed")
	}
	fmt.Println("✅ configuration OK")

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	adapter, err := openAdapter(ctx, &cfg.Source, log)
	if err != nil {
		return fmt.Errorf("❌ failed to connect to source database: %w", err)
	}
	defer adapter.Close()
	fmt.Println("✅ source database reachable")

	s, m, err := loadSchemaAndModel(ctx, cfg, adapter, GetModelFile())
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	fmt.Printf("✅ schema discovered: %d tables\n", len(s.Tables()))
	fmt.Printf("✅ extraction model resolved: %d subject(s), %d global relation(s)\n",
		len(m.Subjects), len(m.Relations))

	return nil
}
