package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/abridge/internal/config"
	"github.com/dbsmedya/abridge/internal/dbadapter/postgres"
	"github.com/dbsmedya/abridge/internal/dbadapter/sqlite"
	"github.com/dbsmedya/abridge/internal/extractor"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/model"
	"github.com/dbsmedya/abridge/internal/schema"
)

// sourceAdapter is the subset of the two dbadapter drivers every CLI
// command needs: schema discovery plus the extractor.Database
// interface. internal/dbadapter has no such interface itself (closed
// two-variant family, no abstraction to avoid an import cycle between
// it and its own subpackages), so the dispatch lives here.
type sourceAdapter interface {
	extractor.Database
	DiscoverSchema(ctx context.Context, tableNames []string) (*schema.Schema, error)
	Close() error
}

// openAdapter opens the configured driver against cfg and returns it
// as a sourceAdapter. Only postgres and sqlite are supported, per
// spec.md §9's closed adapter family.
func openAdapter(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (sourceAdapter, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(ctx, cfg, log)
	case "sqlite":
		return sqlite.Open(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (must be postgres or sqlite)", cfg.Driver)
	}
}

// openReplayDB opens a *sql.DB against cfg for use by internal/replay,
// which talks to database/sql directly rather than through the
// extractor's narrower Database interface.
func openReplayDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return sql.Open("pgx", postgres.BuildDSN(cfg))
	case "sqlite":
		return sql.Open("sqlite3", cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (must be postgres or sqlite)", cfg.Driver)
	}
}

// loadSchemaAndModel discovers the source schema (restricted to
// cfg.Schema.Tables) and resolves the extraction model file against
// it. Shared by extract, validate and plan, which all need both.
func loadSchemaAndModel(ctx context.Context, cfg *config.Config, adapter sourceAdapter, modelPath string) (*schema.Schema, *model.Model, error) {
	if len(cfg.Schema.Tables) == 0 {
		return nil, nil, fmt.Errorf("config has no schema.tables to discover")
	}

	s, err := adapter.DiscoverSchema(ctx, cfg.Schema.Tables)
	if err != nil {
		return nil, nil, fmt.Errorf("schema discovery: %w", err)
	}

	if modelPath == "" {
		modelPath = cfg.Model.Path
	}
	if modelPath == "" {
		return nil, nil, fmt.Errorf("no extraction model path given (set model.path in config or pass --model)")
	}

	m, err := model.Load(modelPath, s)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction model: %w", err)
	}

	return s, m, nil
}
