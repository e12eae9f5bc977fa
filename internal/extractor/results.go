package extractor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/abridge/internal/schema"
	"github.com/dbsmedya/abridge/internal/types"
)

// ResultsRow is one accumulated row of the result set: its column
// values, the subjects that required it, whether it was reached
// sticky, and (for tables with no unique key) how many times it was
// fetched in the current accumulation pass.
type ResultsRow struct {
	table    *schema.Table
	Table    string
	Row      []interface{}
	Subjects map[string]struct{}
	Sticky   bool
	Count    int
}

func newResultsRow(table *schema.Table, row []interface{}, sticky bool) *ResultsRow {
	return &ResultsRow{
		table:    table,
		Table:    table.Name,
		Row:      row,
		Subjects: make(map[string]struct{}),
		Sticky:   sticky,
		Count:    1,
	}
}

// merge absorbs non-null values from other at any position where this
// row is null, per spec.md §4.5 / §8's merge-NULL law: not-null values
// take precedence over nulls, and when both sides are non-null the
// newer (receiver's) value wins.
func (r *ResultsRow) merge(other *ResultsRow) {
	for i := range r.Row {
		if r.Row[i] == nil && other.Row[i] != nil {
			r.Row[i] = other.Row[i]
		}
	}
}

func rowsEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if fmt.Sprint(a[i]) != fmt.Sprint(b[i]) {
			return false
		}
	}
	return true
}

// valueKey builds a stable string key for a tuple of values, used to
// index the per-table effective-primary-key result map.
func valueKey(values []interface{}) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(0)
		}
		sb.WriteString(fmt.Sprint(v))
	}
	return sb.String()
}

// resultStore is map<Table, map<EPK-value-tuple, ResultsRow>> from
// spec.md §3, implemented with ordered maps so that verbosity tracing
// walks tables and rows in a stable, non-random order without forcing
// a sort on every debug line; the Flat Results Exporter still performs
// spec.md §4.6's explicit name/row sort for its own output.
type resultStore struct {
	tables *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *ResultsRow]]
}

func newResultStore() *resultStore {
	return &resultStore{tables: orderedmap.NewOrderedMap[string, *orderedmap.OrderedMap[string, *ResultsRow]]()}
}

func (s *resultStore) tableMap(table string) *orderedmap.OrderedMap[string, *ResultsRow] {
	if m, ok := s.tables.Get(table); ok {
		return m
	}
	m := orderedmap.NewOrderedMap[string, *ResultsRow]()
	s.tables.Set(table, m)
	return m
}

// FlatResult is one exported (table, row) pair, repeated Count times
// by flatResults for tables that permit duplicate rows.
type FlatResult struct {
	Table string
	Row   []interface{}
}

// flatResults is the Flat Results Exporter of spec.md §4.6: tables in
// name order, rows within a table in ascending raw-tuple order, each
// emitted Count times.
func (s *resultStore) flatResults() []FlatResult {
	tableNames := make([]string, 0, s.tables.Len())
	for el := s.tables.Front(); el != nil; el = el.Next() {
		tableNames = append(tableNames, el.Key)
	}
	sort.Strings(tableNames)

	var out []FlatResult
	for _, name := range tableNames {
		tblMap, _ := s.tables.Get(name)
		rows := make([]*ResultsRow, 0, tblMap.Len())
		for el := tblMap.Front(); el != nil; el = el.Next() {
			rows = append(rows, el.Value)
		}
		sort.Slice(rows, func(i, j int) bool { return compareRows(rows[i].Row, rows[j].Row) < 0 })

		for _, row := range rows {
			count := row.Count
			if count < 1 {
				count = 1
			}
			for i := 0; i < count; i++ {
				out = append(out, FlatResult{Table: name, Row: row.Row})
			}
		}
	}
	return out
}

// compareRows orders two row tuples ascending by comparing their
// values position by position, mirroring Python's native tuple
// comparison (numeric columns compare numerically, not as digit
// strings — "10" must sort after "9", not before it).
func compareRows(a, b []interface{}) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// compareValues orders two column values ascending. Driver-returned
// numeric values are compared numerically regardless of their
// concrete Go type (postgres and sqlite drivers don't agree on
// int32 vs int64 for the same column kind); every other case falls
// back to a string compare, the only total order available across
// mixed types.
func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if isIntegerKind(a) && isIntegerKind(b) {
		ai, bi := types.ToInt64(a), types.ToInt64(b)
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}

	if isNumericKind(a) && isNumericKind(b) {
		af, bf := toFloat64(a), toFloat64(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func isIntegerKind(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isNumericKind(v interface{}) bool {
	if isIntegerKind(v) {
		return true
	}
	switch v.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return float64(types.ToInt64(v))
	}
}
