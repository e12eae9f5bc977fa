package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/abridge/internal/schema"
)

// historyEntry is one printable hop of a workItem's provenance trail,
// used by explain mode (spec.md §4.4) to render how a row was reached.
type historyEntry struct {
	table     string
	hasCols   bool
	colsCSV   string
	valuesCSV string
	sticky    bool
}

func (h historyEntry) String() string {
	s := h.table
	if h.hasCols {
		s = fmt.Sprintf("%s.%s=%s", h.table, h.colsCSV, h.valuesCSV)
	}
	if h.sticky {
		s += "*"
	}
	return s
}

// workItem is a unit of planned fetch: a table, an optional column
// filter, a sticky flag and a subject, plus the provenance trail
// needed for explain mode.
//
// Invariant: cols == nil iff values == nil.
type workItem struct {
	subject string
	table   *schema.Table
	cols    []string
	values  [][]interface{}
	sticky  bool
	depth   int
	history []historyEntry
}

func newSeedWorkItem(subject string, table *schema.Table, cols []string, values [][]interface{}) *workItem {
	w := &workItem{
		subject: subject,
		table:   table,
		cols:    cols,
		values:  values,
		sticky:  true,
	}
	w.history = []historyEntry{w.selfHistoryEntry()}
	return w
}

// childWorkItem builds a work item reached from parent via a relation
// edge, inheriting and extending parent's history per spec.md §3's
// monotone-non-decreasing history invariant.
func childWorkItem(parent *workItem, table *schema.Table, cols []string, values [][]interface{}, sticky bool, originRow *ResultsRow) *workItem {
	w := &workItem{
		subject: parent.subject,
		table:   table,
		cols:    cols,
		values:  values,
		sticky:  sticky,
		depth:   parent.depth + 1,
	}
	w.history = buildChildHistory(parent, w, originRow)
	return w
}

func buildChildHistory(parent, child *workItem, originRow *ResultsRow) []historyEntry {
	history := make([]historyEntry, len(parent.history))
	copy(history, parent.history)

	childEntry := child.selfHistoryEntry()

	if originRow != nil {
		rowEntry := resultsRowHistoryEntry(originRow, child.sticky)
		if len(history) == 0 || history[len(history)-1] != rowEntry {
			history = append(history, rowEntry)
		}
		if childEntry != rowEntry {
			history = append(history, childEntry)
		}
		return history
	}

	return append(history, childEntry)
}

func (w *workItem) selfHistoryEntry() historyEntry {
	if w.values == nil {
		return historyEntry{table: w.table.Name, sticky: w.sticky}
	}

	colsCSV := strings.Join(w.cols, ",")
	parts := make([]string, len(w.values[0]))
	for i, v := range w.values[0] {
		parts[i] = fmt.Sprint(v)
	}
	valuesCSV := strings.Join(parts, ",")
	if len(w.values[0]) > 1 {
		colsCSV = "(" + colsCSV + ")"
		valuesCSV = "(" + valuesCSV + ")"
	}

	return historyEntry{table: w.table.Name, hasCols: true, colsCSV: colsCSV, valuesCSV: valuesCSV, sticky: w.sticky}
}

func resultsRowHistoryEntry(row *ResultsRow, sticky bool) historyEntry {
	epk := row.table.EffectivePrimaryKey()

	colsCSV := strings.Join(epk, ",")
	parts := make([]string, len(epk))
	for i, col := range epk {
		idx := row.table.ColIndex(col)
		parts[i] = fmt.Sprint(row.Row[idx])
	}
	valuesCSV := strings.Join(parts, ",")
	if len(epk) > 1 {
		colsCSV = "(" + colsCSV + ")"
		valuesCSV = "(" + valuesCSV + ")"
	}

	return historyEntry{table: row.table.Name, hasCols: true, colsCSV: colsCSV, valuesCSV: valuesCSV, sticky: sticky}
}

// printHistory renders a work item's provenance trail the way
// explain mode prints it: "table.col=val* -> table2 -> ...".
func (w *workItem) printHistory() string {
	parts := make([]string, len(w.history))
	for i, h := range w.history {
		parts[i] = h.String()
	}
	return strings.Join(parts, " -> ")
}

// nonValueHash is the dedup key for an unfiltered work item.
func (w *workItem) nonValueHash() string {
	return w.subject + "\x00" + w.table.Name + "\x00" + strconv.FormatBool(w.sticky)
}

// valueHash is the dedup key for a single value tuple of a filtered
// work item.
func (w *workItem) valueHash(v []interface{}) string {
	var sb strings.Builder
	sb.WriteString(w.subject)
	sb.WriteByte(0)
	sb.WriteString(w.table.Name)
	sb.WriteByte(0)
	sb.WriteString(strings.Join(w.cols, ","))
	sb.WriteByte(0)
	for i, e := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprint(e))
	}
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatBool(w.sticky))
	return sb.String()
}
