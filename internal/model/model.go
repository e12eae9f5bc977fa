// Package model holds the extraction model: the declarative union of
// subjects and relations that steers the extraction engine's
// traversal of a schema.Schema. It is the "Extraction model (consumed)"
// collaborator described in the extraction-engine specification — a
// parsed, already-validated structure; internal/model/loader.go is
// the one component allowed to reject a malformed model.
package model

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/abridge/internal/schema"
)

// Kind discriminates the three shapes a Relation can take.
type Kind int

const (
	// KindIncomingFK brings in rows of the table referring to the
	// current one (fk.DstTable == current) through fk.SrcTable.
	KindIncomingFK Kind = iota
	// KindOutgoingFK brings in the row the current one's foreign key
	// points at (fk.SrcTable == current) into fk.DstTable.
	KindOutgoingFK
	// KindWholeTable brings in every row of Table, unfiltered.
	KindWholeTable
)

// Relation is a directed, optionally FK-tied edge the traversal is
// permitted to follow. Table is the table the relation is declared
// against; for KindWholeTable it is the table whose rows are pulled in
// whole, for the FK kinds it carries the config-level table name used
// for merge-key and history purposes even though the concrete source
// and destination tables live on FK.
type Relation struct {
	Table           string
	Kind            Kind
	FK              *schema.ForeignKey // nil iff Kind == KindWholeTable
	PropagateSticky bool
	OnlyIfSticky    bool
}

func fkKey(fk *schema.ForeignKey) string {
	if fk == nil {
		return ""
	}
	return fk.SrcTable + "(" + strings.Join(fk.SrcCols, ",") + ")->" +
		fk.DstTable + "(" + strings.Join(fk.DstCols, ",") + ")"
}

// mergeKey identifies relations describing the same edge: same table,
// same foreign key (or none), same direction.
func (r Relation) mergeKey() string {
	return fmt.Sprintf("%d\x00%s\x00%s", r.Kind, r.Table, fkKey(r.FK))
}

// MergeRelations concatenates global and subject relations (in that
// order, which the Relation Resolver's adjacency build preserves) and
// folds relations describing the same edge together. Two relations
// for the same edge merge permissively: PropagateSticky and
// OnlyIfSticky are both OR-folded, since sticky propagation is monotone
// ("once on, stays on") and duplicate declarations of the same edge
// are assumed to express alternative, non-exclusive reasons to gate
// on stickiness.
func MergeRelations(relations ...[]Relation) []Relation {
	var order []string
	merged := make(map[string]Relation)

	for _, group := range relations {
		for _, r := range group {
			key := r.mergeKey()
			existing, ok := merged[key]
			if !ok {
				merged[key] = r
				order = append(order, key)
				continue
			}
			existing.PropagateSticky = existing.PropagateSticky || r.PropagateSticky
			existing.OnlyIfSticky = existing.OnlyIfSticky || r.OnlyIfSticky
			merged[key] = existing
		}
	}

	out := make([]Relation, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

// SeedTable is one seed entry of a Subject: a root table, optionally
// filtered to rows whose Col takes one of Values.
type SeedTable struct {
	Table  string
	Col    string
	Values []interface{} // nil means unfiltered
}

// Subject is a named root of the traversal with its own seed tables
// and local relation overrides that apply only within this subject.
type Subject struct {
	Name      string
	Tables    []SeedTable
	Relations []Relation
}

// Model is the parsed extraction model: a set of subjects plus
// relations that apply across all of them.
type Model struct {
	Subjects  []Subject
	Relations []Relation
}
