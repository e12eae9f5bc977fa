// Package postgres is the postgres member of the adapter family
// spec.md §9 scopes the engine to: connection management, schema
// discovery via information_schema and the pg_catalog tables, and row
// fetching that satisfies
// internal/extractor's Database interface.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/dbsmedya/abridge/internal/config"
	"github.com/dbsmedya/abridge/internal/dbadapter"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/schema"
)

// Adapter owns a connection to a single postgres database and serves
// both schema discovery and row fetching against it.
type Adapter struct {
	db  *sql.DB
	log *logger.Logger
}

// Open connects to the database described by cfg, retrying with
// backoff, and pings it before returning.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*Adapter, error) {
	dsn := BuildDSN(cfg)

	var db *sql.DB
	var err error

	const maxRetries = 3
	backoff := time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				break
			} else {
				db.Close()
				err = pingErr
			}
		}

		if attempt < maxRetries-1 {
			log.Warnw("postgres connection attempt failed, retrying", "attempt", attempt+1, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to connect after %d attempts: %w", maxRetries, err)
	}

	return &Adapter{db: db, log: log}, nil
}

// BuildDSN constructs a postgres connection string from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslmode)
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// DiscoverSchema reads, for every table named in tableNames, its
// columns from information_schema.columns and its primary key, unique
// indexes and foreign keys from pg_index, pg_attribute and
// pg_constraint, and assembles a *schema.Schema describing them.
func (a *Adapter) DiscoverSchema(ctx context.Context, tableNames []string) (*schema.Schema, error) {
	s := schema.New()

	for _, name := range tableNames {
		cols, err := a.discoverColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("postgres: discover columns for %s: %w", name, err)
		}

		pk, err := a.discoverPrimaryKey(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("postgres: discover primary key for %s: %w", name, err)
		}

		uniques, err := a.discoverUniqueIndexes(ctx, name, pk)
		if err != nil {
			return nil, fmt.Errorf("postgres: discover unique indexes for %s: %w", name, err)
		}

		fks, err := a.discoverForeignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("postgres: discover foreign keys for %s: %w", name, err)
		}

		t := &schema.Table{
			Name:          name,
			Cols:          cols,
			PrimaryKey:    pk,
			UniqueIndexes: uniques,
			ForeignKeys:   fks,
		}
		if err := s.AddTable(t); err != nil {
			return nil, err
		}
	}

	s.LinkForeignKeys()
	return s, nil
}

func (a *Adapter) discoverColumns(ctx context.Context, table string) ([]schema.Column, error) {
	const q = `
SELECT column_name, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position`

	rows, err := a.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, nullable string
		if err := rows.Scan(&name, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, schema.Column{Table: table, Name: name, Nullable: nullable == "YES"})
	}
	return cols, rows.Err()
}

func (a *Adapter) discoverPrimaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass AND i.indisprimary
ORDER BY array_position(i.indkey, a.attnum)`

	rows, err := a.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

func (a *Adapter) discoverUniqueIndexes(ctx context.Context, table string, pk []string) ([]schema.UniqueIndex, error) {
	const q = `
SELECT ic.relname AS index_name, a.attname AS column_name
FROM pg_index i
JOIN pg_class ic ON ic.oid = i.indexrelid
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass AND i.indisunique AND NOT i.indisprimary
ORDER BY ic.relname, array_position(i.indkey, a.attnum)`

	rows, err := a.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*schema.UniqueIndex)
	var order []string
	for rows.Next() {
		var idxName, col string
		if err := rows.Scan(&idxName, &col); err != nil {
			return nil, err
		}
		idx, ok := byName[idxName]
		if !ok {
			idx = &schema.UniqueIndex{Name: idxName}
			byName[idxName] = idx
			order = append(order, idxName)
		}
		idx.Cols = append(idx.Cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]schema.UniqueIndex, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func (a *Adapter) discoverForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	const q = `
SELECT
    con.conname,
    src.attname AS src_col,
    dstrel.relname AS dst_table,
    dst.attname AS dst_col,
    ord.ordinality
FROM pg_constraint con
JOIN pg_class dstrel ON dstrel.oid = con.confrelid
JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS ord(srcattnum, dstattnum, ordinality) ON true
JOIN pg_attribute src ON src.attrelid = con.conrelid AND src.attnum = ord.srcattnum
JOIN pg_attribute dst ON dst.attrelid = con.confrelid AND dst.attnum = ord.dstattnum
WHERE con.conrelid = $1::regclass AND con.contype = 'f'
ORDER BY con.conname, ord.ordinality`

	rows, err := a.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type fk struct {
		dstTable        string
		srcCols, dstCols []string
	}
	byName := make(map[string]*fk)
	var order []string
	for rows.Next() {
		var conname, srcCol, dstTable, dstCol string
		var ordinality int
		if err := rows.Scan(&conname, &srcCol, &dstTable, &dstCol, &ordinality); err != nil {
			return nil, err
		}
		f, ok := byName[conname]
		if !ok {
			f = &fk{dstTable: dstTable}
			byName[conname] = f
			order = append(order, conname)
		}
		f.srcCols = append(f.srcCols, srcCol)
		f.dstCols = append(f.dstCols, dstCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]schema.ForeignKey, 0, len(order))
	for _, name := range order {
		f := byName[name]
		out = append(out, schema.ForeignKey{
			SrcTable: table,
			SrcCols:  f.srcCols,
			DstTable: f.dstTable,
			DstCols:  f.dstCols,
		})
	}
	return out, nil
}

// FetchRows satisfies extractor.Database. The select list is always
// every column of table, in storage order, matching spec.md §6's "order
// of returned columns must match table.cols"; cols is the filter column
// tuple the caller is restricting values to (the work item's WHERE
// (cols...) IN (values...) clause), applied only when values is
// non-empty; otherwise every row of table is fetched.
func (a *Adapter) FetchRows(ctx context.Context, table *schema.Table, cols []string, values [][]interface{}) ([][]interface{}, error) {
	if len(values) == 0 {
		query := dbadapter.BuildSelectAll(table.Name, dbadapter.ColumnNames(table))
		return a.query(ctx, query)
	}

	query := dbadapter.BuildSelectWhereIn(table.Name, dbadapter.ColumnNames(table), cols, len(values), "dollar")
	args := dbadapter.FlattenValues(values)
	return a.query(ctx, query, args...)
}

func (a *Adapter) query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]interface{}
	for rows.Next() {
		raw := make([]interface{}, len(colNames))
		ptrs := make([]interface{}, len(colNames))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("postgres: scan failed: %w", err)
		}
		for i, v := range raw {
			if b, ok := v.([]byte); ok {
				raw[i] = string(b)
			}
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}
