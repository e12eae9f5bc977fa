// Package extractor implements the referentially-consistent subset
// extraction engine: given a schema, an extraction model and a
// database adapter, it walks foreign-key relations breadth-first from
// a set of seed rows and accumulates a deduplicated, FK-clean result
// set.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/model"
	"github.com/dbsmedya/abridge/internal/schema"
)

// Database is the one collaborator the engine depends on: a row
// fetcher over a single table, optionally filtered to a column/value
// tuple set. internal/dbadapter/postgres and internal/dbadapter/sqlite
// satisfy this interface structurally, without internal/extractor
// importing either of them.
type Database interface {
	FetchRows(ctx context.Context, table *schema.Table, cols []string, values [][]interface{}) ([][]interface{}, error)
}

// edge is one resolved relation, indexed in the adjacency map under
// the table whose work items it fires from.
type edge struct {
	relationTable   string
	dstTable        string
	srcCols         []string // nil for a whole-table edge
	dstCols         []string
	propagateSticky bool
	onlyIfSticky    bool
}

// Extractor runs the single-threaded work-queue algorithm described
// by the core engine: it owns the work queue, the seen-work hash and
// the result store for the lifetime of one Run.
type Extractor struct {
	db     Database
	schema *schema.Schema
	model  *model.Model
	log    *logger.Logger

	Explain   bool
	Verbosity int

	subjectAdjacency map[string]map[string][]edge
	queue            []*workItem
	seen             map[string]struct{}
	results          *resultStore

	FetchCount              int
	FetchedRowCount         int
	FetchedRowCountPerTable map[string]int
	MaxDepth                int
}

// FlatResults is the Flat Results Exporter of spec.md §4.6.
func (e *Extractor) FlatResults() []FlatResult {
	return e.results.flatResults()
}

// New builds an Extractor, resolving every subject's adjacency map
// (§4.1) and seeding the work queue (§4.2) up front so that Run need
// only drain the queue.
func New(db Database, s *schema.Schema, m *model.Model, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewDefault()
	}

	e := &Extractor{
		db:                      db,
		schema:                  s,
		model:                   m,
		log:                     log,
		subjectAdjacency:        make(map[string]map[string][]edge),
		seen:                    make(map[string]struct{}),
		results:                 newResultStore(),
		FetchedRowCountPerTable: make(map[string]int),
	}

	for _, subj := range m.Subjects {
		e.subjectAdjacency[subj.Name] = resolveAdjacency(m.Relations, subj.Relations)
		for _, seed := range subj.Tables {
			e.queue = append(e.queue, seedWorkItem(subj.Name, s, seed))
		}
	}

	return e
}

// seedWorkItem turns a model.SeedTable into the initial WorkItem for
// its subject, per spec.md §4.2.
func seedWorkItem(subject string, s *schema.Schema, seed model.SeedTable) *workItem {
	tbl := s.Table(seed.Table)
	if seed.Values == nil {
		return newSeedWorkItem(subject, tbl, nil, nil)
	}
	values := make([][]interface{}, len(seed.Values))
	for i, v := range seed.Values {
		values[i] = []interface{}{v}
	}
	return newSeedWorkItem(subject, tbl, []string{seed.Col}, values)
}

// resolveAdjacency is the Relation Resolver of spec.md §4.1: merge
// global and subject relations, then index each resolved relation
// under the table its edge fires from.
func resolveAdjacency(global, subject []model.Relation) map[string][]edge {
	merged := model.MergeRelations(global, subject)

	adjacency := make(map[string][]edge)
	for _, r := range merged {
		switch r.Kind {
		case model.KindIncomingFK:
			key := r.FK.DstTable
			adjacency[key] = append(adjacency[key], edge{
				relationTable:   r.Table,
				dstTable:        r.FK.SrcTable,
				srcCols:         r.FK.DstCols,
				dstCols:         r.FK.SrcCols,
				propagateSticky: r.PropagateSticky,
				onlyIfSticky:    r.OnlyIfSticky,
			})
		case model.KindOutgoingFK:
			key := r.FK.SrcTable
			adjacency[key] = append(adjacency[key], edge{
				relationTable:   r.Table,
				dstTable:        r.FK.DstTable,
				srcCols:         r.FK.SrcCols,
				dstCols:         r.FK.DstCols,
				propagateSticky: r.PropagateSticky,
				onlyIfSticky:    r.OnlyIfSticky,
			})
		default: // KindWholeTable
			adjacency[r.Table] = append(adjacency[r.Table], edge{
				relationTable:   r.Table,
				dstTable:        r.Table,
				propagateSticky: r.PropagateSticky,
				onlyIfSticky:    r.OnlyIfSticky,
			})
		}
	}
	return adjacency
}

// Run drains the work queue to completion (spec.md §4.3). It is
// idempotent: once the queue is empty, a second call is a no-op and
// returns immediately, matching the "re-run from scratch on failure,
// not resumed" error-handling stance of spec.md §7.
func (e *Extractor) Run(ctx context.Context) error {
	for len(e.queue) > 0 {
		w := e.queue[0]
		e.queue = e.queue[1:]

		if err := e.dedupAndProcess(ctx, w); err != nil {
			return err
		}
	}

	if e.Verbosity > 0 {
		e.log.Infow("extraction completed",
			"rows", e.FetchedRowCount,
			"tables", len(e.FetchedRowCountPerTable),
			"queries", e.FetchCount,
			"max_depth", e.MaxDepth,
		)
	}

	return nil
}

// dedupAndProcess implements the dedup step of spec.md §4.3: unfiltered
// items dedup on a single hash; filtered items dedup per value tuple,
// with only the unseen tuples surviving into the fetch.
func (e *Extractor) dedupAndProcess(ctx context.Context, w *workItem) error {
	if w.values == nil {
		h := w.nonValueHash()
		if _, ok := e.seen[h]; ok {
			return nil
		}
		e.seen[h] = struct{}{}
		return e.process(ctx, w)
	}

	unseen := make([][]interface{}, 0, len(w.values))
	for _, v := range w.values {
		if _, ok := e.seen[w.valueHash(v)]; !ok {
			unseen = append(unseen, v)
		}
	}

	for _, v := range w.values {
		e.seen[w.valueHash(v)] = struct{}{}
	}

	if len(unseen) == 0 {
		return nil
	}

	w.values = unseen
	return e.process(ctx, w)
}

// process is the Process step of spec.md §4.3: fetch, expand
// relations, then accumulate results.
func (e *Extractor) process(ctx context.Context, w *workItem) error {
	if w.depth > e.MaxDepth {
		e.MaxDepth = w.depth
	}

	if e.Explain {
		e.log.Infow("explain", "history", w.printHistory())
	}

	if e.Verbosity > 1 {
		e.log.Infow("processing pass",
			"pass", e.FetchCount+1,
			"queued", len(e.queue),
			"depth", e.MaxDepth,
			"tables", len(e.FetchedRowCountPerTable),
			"rows", e.FetchedRowCount,
			"table", w.table.Name,
		)
	}

	rawRows, err := e.db.FetchRows(ctx, w.table, w.cols, w.values)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", w.table.Name, err)
	}
	e.FetchCount++

	if len(rawRows) == 0 {
		return nil
	}

	rows := make([]*ResultsRow, len(rawRows))
	for i, r := range rawRows {
		rows[i] = newResultsRow(w.table, r, w.sticky)
	}

	edges := e.subjectAdjacency[w.subject][w.table.Name]

	processedOutgoingFKCols := e.expandRelations(w, rows, edges)
	// A child filtered on the source columns of one of its own foreign
	// keys, reached through an incoming edge from that key's target
	// table, came from parent rows already accumulated: the relation
	// through those columns was traversed, so they keep their values.
	if w.depth > 0 && w.cols != nil {
		key := strings.Join(w.cols, ",")
		for _, fk := range w.table.ForeignKeys {
			if strings.Join(fk.SrcCols, ",") != key {
				continue
			}
			for _, ed := range e.subjectAdjacency[w.subject][fk.DstTable] {
				if ed.dstTable == w.table.Name && strings.Join(ed.dstCols, ",") == key {
					for _, c := range fk.SrcCols {
						processedOutgoingFKCols[c] = struct{}{}
					}
				}
			}
		}
	}
	e.accumulate(w, rows, processedOutgoingFKCols)

	return nil
}
