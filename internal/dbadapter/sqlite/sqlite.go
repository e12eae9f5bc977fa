// Package sqlite is the sqlite member of the adapter family spec.md
// §9 scopes the engine to: connection management, schema discovery
// via PRAGMA statements, and row fetching that satisfies
// internal/extractor's Database interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver

	"github.com/dbsmedya/abridge/internal/config"
	"github.com/dbsmedya/abridge/internal/dbadapter"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/schema"
)

// Adapter owns a connection to a single sqlite database file and
// serves both schema discovery and row fetching against it.
type Adapter struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens the sqlite file described by cfg.Path and enables
// foreign-key enforcement, which sqlite otherwise leaves off by
// default.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", cfg.Path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign_keys: %w", err)
	}

	return &Adapter{db: db, log: log}, nil
}

// Close releases the underlying connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// DiscoverSchema reads sqlite's PRAGMA table_info/foreign_key_list/
// index_list for every table named in tableNames and assembles a
// *schema.Schema describing their columns, primary keys, unique
// indexes, and foreign keys.
func (a *Adapter) DiscoverSchema(ctx context.Context, tableNames []string) (*schema.Schema, error) {
	s := schema.New()

	for _, name := range tableNames {
		cols, pk, err := a.discoverColumnsAndPK(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: discover columns for %s: %w", name, err)
		}

		uniques, err := a.discoverUniqueIndexes(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: discover unique indexes for %s: %w", name, err)
		}

		fks, err := a.discoverForeignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: discover foreign keys for %s: %w", name, err)
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

// discoverColumnsAndPK reads PRAGMA table_info(table), which reports
// one row per column including its 1-based position in the primary
// key (pk > 0; composite keys are assembled in pk order).
func (a *Adapter) discoverColumnsAndPK(ctx context.Context, table string) ([]schema.Column, []string, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteSqliteName(table)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	type pkCol struct {
		name string
		pos  int
	}
	var pkCols []pkCol

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dfltValue interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, nil, err
		}
		cols = append(cols, schema.Column{Table: table, Name: name, Nullable: notNull == 0})
		if pk > 0 {
			pkCols = append(pkCols, pkCol{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var pk []string
	if len(pkCols) > 0 {
		pk = make([]string, len(pkCols))
		for _, c := range pkCols {
			pk[c.pos-1] = c.name
		}
	}

	return cols, pk, nil
}

func (a *Adapter) discoverUniqueIndexes(ctx context.Context, table string) ([]schema.UniqueIndex, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteSqliteName(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
	}
	var indexes []idxMeta
	for rows.Next() {
		var seq int
		var name string
		var unique int
		var origin, partial string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		if unique == 1 && origin != "pk" {
			indexes = append(indexes, idxMeta{name: name, unique: true})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []schema.UniqueIndex
	for _, idx := range indexes {
		cols, err := a.discoverIndexColumns(ctx, idx.name)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.UniqueIndex{Name: idx.name, Cols: cols})
	}
	return out, nil
}

func (a *Adapter) discoverIndexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteSqliteName(indexName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (a *Adapter) discoverForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSqliteName(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type fk struct {
		id               int
		dstTable         string
		srcCols, dstCols []string
	}
	byID := make(map[int]*fk)
	var order []int
	for rows.Next() {
		var id, seq int
		var dstTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &dstTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		f, ok := byID[id]
		if !ok {
			f = &fk{id: id, dstTable: dstTable}
			byID[id] = f
			order = append(order, id)
		}
		f.srcCols = append(f.srcCols, from)
		f.dstCols = append(f.dstCols, to)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]schema.ForeignKey, 0, len(order))
	for _, id := range order {
		f := byID[id]
		out = append(out, schema.ForeignKey{
			SrcTable: table,
			SrcCols:  f.srcCols,
			DstTable: f.dstTable,
			DstCols:  f.dstCols,
		})
	}
	return out, nil
}

// quoteSqliteName quotes a table/index name for interpolation into a
// PRAGMA statement, which sqlite does not accept bind parameters for.
func quoteSqliteName(name string) string {
	return `"` + name + `"`
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

	query := dbadapter.BuildSelectWhereIn(table.Name, dbadapter.ColumnNames(table), cols, len(values), "question")
	args := dbadapter.FlattenValues(values)
	return a.query(ctx, query, args...)
}

func (a *Adapter) query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
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
			return nil, fmt.Errorf("sqlite: scan failed: %w", err)
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
