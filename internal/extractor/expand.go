package extractor

// expandRelations is Relation Expansion (spec.md §4.4): for every edge
// leaving this work item's table, enqueue the child work items it
// implies and return the set of this table's outgoing FK columns that
// were followed, so Result Accumulation knows which FK columns must
// be left alone rather than nulled.
func (e *Extractor) expandRelations(w *workItem, rows []*ResultsRow, edges []edge) map[string]struct{} {
	processed := make(map[string]struct{})

	for _, ed := range edges {
		if ed.onlyIfSticky && !w.sticky {
			continue
		}

		childSticky := w.sticky && ed.propagateSticky

		if ed.srcCols == nil {
			e.queue = append(e.queue, childWorkItem(w, e.schema.Table(ed.dstTable), nil, nil, childSticky, nil))
			continue
		}

		for _, c := range ed.srcCols {
			processed[c] = struct{}{}
		}

		srcIdx := make([]int, len(ed.srcCols))
		for i, c := range ed.srcCols {
			srcIdx[i] = w.table.ColIndex(c)
		}

		var dstValues [][]interface{}
		seen := make(map[string]struct{})

		for _, row := range rows {
			tuple := make([]interface{}, len(srcIdx))
			hasNull := false
			for i, idx := range srcIdx {
				tuple[i] = row.Row[idx]
				if tuple[i] == nil {
					hasNull = true
				}
			}
			if hasNull {
				continue
			}

			key := valueKey(tuple)
			if _, ok := seen[key]; !ok {
				dstValues = append(dstValues, tuple)
				seen[key] = struct{}{}
			}

			// Explain mode faithfully reproduces the original
			// engine's per-row replay over the growing dstValues
			// list: every row re-enqueues every distinct value seen
			// so far, not just its own, so a single row's history
			// can fan out across several earlier sibling values.
			if e.Explain {
				for _, dv := range dstValues {
					e.queue = append(e.queue, childWorkItem(
						w, e.schema.Table(ed.dstTable), ed.dstCols, [][]interface{}{dv}, childSticky, row,
					))
				}
			}
		}

		if !e.Explain && len(dstValues) > 0 {
			e.queue = append(e.queue, childWorkItem(w, e.schema.Table(ed.dstTable), ed.dstCols, dstValues, childSticky, nil))
		}
	}

	return processed
}

// accumulate is Result Accumulation (spec.md §4.5): null untraversed
// FK columns, merge into the effective-PK result map, and refresh
// duplicate-row counts.
func (e *Extractor) accumulate(w *workItem, rows []*ResultsRow, processedOutgoingFKCols map[string]struct{}) {
	table := w.table

	allFKCols := make(map[string]struct{})
	for _, fk := range table.ForeignKeys {
		for _, c := range fk.SrcCols {
			allFKCols[c] = struct{}{}
		}
	}

	var colsToNull []int
	for c := range allFKCols {
		if _, ok := processedOutgoingFKCols[c]; !ok {
			colsToNull = append(colsToNull, table.ColIndex(c))
		}
	}
	for _, row := range rows {
		for _, idx := range colsToNull {
			row.Row[idx] = nil
		}
	}

	epk := table.EffectivePrimaryKey()
	countIdenticalRows := table.CanHaveDuplicatedRows()
	counts := make(map[string]int)

	tblMap := e.results.tableMap(table.Name)

	for _, row := range rows {
		row.Subjects[w.subject] = struct{}{}
		e.FetchedRowCount++
		e.FetchedRowCountPerTable[table.Name]++

		epkValues := make([]interface{}, len(epk))
		for i, c := range epk {
			epkValues[i] = row.Row[table.ColIndex(c)]
		}
		key := valueKey(epkValues)

		if countIdenticalRows {
			counts[key]++
		}

		if existing, ok := tblMap.Get(key); ok {
			if !rowsEqual(row.Row, existing.Row) {
				row.merge(existing)
			}
		}

		tblMap.Set(key, row)
	}

	if countIdenticalRows {
		for key, count := range counts {
			if row, ok := tblMap.Get(key); ok {
				row.Count = count
			}
		}
	}
}
