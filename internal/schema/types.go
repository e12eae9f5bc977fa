// Package schema holds the relational metadata the extraction engine
// traverses: tables, columns and foreign keys, plus the derived
// effective-primary-key and duplicate-row properties spec.md assigns
// to each table.
//
// Tables, columns and foreign keys form a natural cyclic graph (a
// foreign key points from one table's columns to another's, and a
// table knows both its outgoing and incoming foreign keys). Rather
// than model that with back-pointers, a Schema owns every Table in a
// single arena (a slice) and foreign keys hold plain string table
// names; callers resolve names through the owning Schema.
package schema

import "fmt"

// Column identifies a single column of a table.
type Column struct {
	Table    string
	Name     string
	Nullable bool
}

// ForeignKey is an ordered, equal-arity mapping from one table's
// columns to another's.
type ForeignKey struct {
	SrcTable string
	SrcCols  []string
	DstTable string
	DstCols  []string
}

// UniqueIndex is an ordered tuple of columns that uniquely identify a
// row in its table.
type UniqueIndex struct {
	Name string
	Cols []string
}

// Table describes one relation's shape: its columns in storage order,
// its primary key (if any), its unique indexes, and the foreign keys
// pointing out of and into it.
type Table struct {
	Name                string
	Cols                []Column
	PrimaryKey          []string // empty if the table has none
	UniqueIndexes       []UniqueIndex
	ForeignKeys         []ForeignKey // outgoing: SrcTable == Name
	IncomingForeignKeys []ForeignKey // incoming: DstTable == Name

	colIndex map[string]int
}

// ColIndex returns the storage-order position of a column, or -1 if
// the table has no such column.
func (t *Table) ColIndex(name string) int {
	if t.colIndex == nil {
		return -1
	}
	if idx, ok := t.colIndex[name]; ok {
		return idx
	}
	return -1
}

// EffectivePrimaryKey returns the table's primary key if it has one,
// else its smallest unique index, else the full column tuple (in
// which case CanHaveDuplicatedRows reports true).
func (t *Table) EffectivePrimaryKey() []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}

	if len(t.UniqueIndexes) > 0 {
		smallest := t.UniqueIndexes[0]
		for _, idx := range t.UniqueIndexes[1:] {
			if len(idx.Cols) < len(smallest.Cols) {
				smallest = idx
			}
		}
		return smallest.Cols
	}

	all := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		all[i] = c.Name
	}
	return all
}

// CanHaveDuplicatedRows reports whether the table has no unique key at
// all, meaning its effective primary key is the full column tuple and
// the engine must count rather than merge duplicate fetches.
func (t *Table) CanHaveDuplicatedRows() bool {
	return len(t.PrimaryKey) == 0 && len(t.UniqueIndexes) == 0
}

// Schema is the arena owning every Table discovered for a run. It is
// built once (by a discovery step in internal/dbadapter) and treated
// as immutable afterward.
type Schema struct {
	tables map[string]*Table
	order  []string // discovery order, for deterministic iteration
}

// New returns an empty Schema.
func New() *Schema {
	return &Schema{tables: make(map[string]*Table)}
}

// AddTable registers a table, indexing its columns for ColIndex
// lookups. It is an error to add the same table name twice.
func (s *Schema) AddTable(t *Table) error {
	if _, exists := s.tables[t.Name]; exists {
		return fmt.Errorf("schema: duplicate table %q", t.Name)
	}
	t.colIndex = make(map[string]int, len(t.Cols))
	for i, c := range t.Cols {
		t.colIndex[c.Name] = i
	}
	s.tables[t.Name] = t
	s.order = append(s.order, t.Name)
	return nil
}

// Table returns the named table, or nil if the schema has none by
// that name.
func (s *Schema) Table(name string) *Table {
	return s.tables[name]
}

// Tables returns every table in discovery order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, len(s.order))
	for i, name := range s.order {
		out[i] = s.tables[name]
	}
	return out
}

// LinkForeignKeys populates IncomingForeignKeys on destination tables
// from the ForeignKeys already set on source tables. Call once after
// all tables and their outgoing foreign keys have been added.
func (s *Schema) LinkForeignKeys() {
	for _, name := range s.order {
		t := s.tables[name]
		for _, fk := range t.ForeignKeys {
			if dst := s.tables[fk.DstTable]; dst != nil {
				dst.IncomingForeignKeys = append(dst.IncomingForeignKeys, fk)
			}
		}
	}
}
