// Package dbadapter holds the shared pieces of the two database
// adapters in internal/dbadapter/postgres and internal/dbadapter/sqlite:
// the closed {sqlite, postgresql} family spec.md §9 calls for. Each
// adapter owns a *sql.DB and satisfies extractor.Database structurally
// (FetchRows), without importing internal/extractor, so the core
// engine stays decoupled from any particular driver.
package dbadapter

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/abridge/internal/schema"
	"github.com/dbsmedya/abridge/internal/sqlutil"
)

// ColumnNames returns table's columns in storage order, the select list
// every FetchRows call uses regardless of whether the fetch is filtered.
func ColumnNames(table *schema.Table) []string {
	cols := make([]string, len(table.Cols))
	for i, c := range table.Cols {
		cols[i] = c.Name
	}
	return cols
}

// BuildSelectAll builds `SELECT cols... FROM table` in table-column
// order, quoting both the table and every column.
func BuildSelectAll(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlutil.QuoteIdentifier(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), sqlutil.QuoteIdentifier(table))
}

// BuildSelectWhereIn builds a `SELECT ... WHERE (cols...) IN (...)`
// query for a filtered fetch, using $1/$2/... or ?/?/... placeholders
// depending on paramStyle ("dollar" or "question").
//
// Placeholders are flattened positionally: value tuple i, column j
// becomes parameter i*len(filterCols)+j+1. Callers pass the flattened
// argument list in the same order.
func BuildSelectWhereIn(table string, cols []string, filterCols []string, numTuples int, paramStyle string) string {
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = sqlutil.QuoteIdentifier(c)
	}

	quotedFilterCols := make([]string, len(filterCols))
	for i, c := range filterCols {
		quotedFilterCols[i] = sqlutil.QuoteIdentifier(c)
	}
	filterExpr := strings.Join(quotedFilterCols, ", ")
	if len(filterCols) > 1 {
		filterExpr = "(" + filterExpr + ")"
	}

	tuples := make([]string, numTuples)
	param := 1
	for t := 0; t < numTuples; t++ {
		placeholders := make([]string, len(filterCols))
		for c := range filterCols {
			placeholders[c] = placeholder(paramStyle, param)
			param++
		}
		tuple := strings.Join(placeholders, ", ")
		if len(filterCols) > 1 {
			tuple = "(" + tuple + ")"
		}
		tuples[t] = tuple
	}

	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(quotedCols, ", "), sqlutil.QuoteIdentifier(table), filterExpr, strings.Join(tuples, ", "))
}

func placeholder(style string, n int) string {
	if style == "dollar" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// FlattenValues turns a list of value tuples into one flat argument
// slice in row-major order, matching BuildSelectWhereIn's placeholder
// numbering.
func FlattenValues(values [][]interface{}) []interface{} {
	var out []interface{}
	for _, tuple := range values {
		out = append(out, tuple...)
	}
	return out
}

// Draining *sql.Rows into [][]interface{} is implemented per-adapter,
// by the query method in postgres.go/sqlite.go: both share the same
// scan-into-[]interface{} shape, but *sql.Rows is a concrete type with
// no useful interface to abstract it behind here.
