package graph

import "github.com/dbsmedya/abridge/internal/schema"

// FromSchema builds a dependency Graph from a schema's foreign keys,
// for use by the replay writer's insert ordering: an edge runs from
// the referenced (parent) table to the referencing (child) table, so
// TopologicalSort/CopyOrder yields an order where every row's foreign
// keys already point at rows already written.
//
// A self-referential foreign key (spec.md's own users.manager_id
// example) adds no edge. Mutually-referential foreign keys between
// different tables produce a cycle that TopologicalSort cannot order;
// callers needing a best-effort order in that case should use
// CopyOrderTolerant.
func FromSchema(s *schema.Schema) *Graph {
	tables := s.Tables()

	var root string
	if len(tables) > 0 {
		root = tables[0].Name
	}
	g := NewGraph(root, "")

	for _, t := range tables {
		if t.Name == root {
			continue
		}
		g.AddNode(t.Name, &Node{Name: t.Name})
	}

	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.DstTable == t.Name {
				continue // self-reference: no ordering edge, would be its own cycle
			}
			g.AddEdgeWithMeta(fk.DstTable, t.Name, joinCols(fk.SrcCols), joinCols(fk.DstCols), "")
		}
	}

	return g
}

func joinCols(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	out := cols[0]
	for _, c := range cols[1:] {
		out += "," + c
	}
	return out
}

// CopyOrderTolerant returns a best-effort copy order: the topological
// order of whatever portion of the graph is acyclic, with any tables
// left over from a cycle appended afterward, in no particular order.
// The replay writer inserts tables in this order inside one
// transaction without deferring foreign-key enforcement, so among
// cyclic tables a row can be inserted before the row it references.
func (g *Graph) CopyOrderTolerant() []string {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	var result []string
	seen := make(map[string]struct{}, len(g.Nodes))

	for !queue.IsEmpty() {
		node, _ := queue.Dequeue()
		result = append(result, node)
		seen[node] = struct{}{}

		for _, child := range g.GetChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}

	for _, name := range g.AllNodes() {
		if _, ok := seen[name]; !ok {
			result = append(result, name)
		}
	}
	return result
}
