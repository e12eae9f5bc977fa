package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/abridge/internal/config"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/model"
)

// outputWriter is used for printing output, can be overridden in tests.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) { outputWriter = w }
func resetOutputWriter()          { outputWriter = os.Stdout }

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relation graph an extraction would traverse",
	Long: `Plan loads the configured schema and extraction model and renders,
per subject, the relation adjacency the engine would traverse: an
ASCII tree rooted at the subject's seed tables, plus a relationships
list with sticky-propagating edges highlighted.

Example:
  abridge plan --config abridge.yaml --model model.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	adapter, err := openAdapter(ctx, &cfg.Source, log)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer adapter.Close()

	_, m, err := loadSchemaAndModel(ctx, cfg, adapter, GetModelFile())
	if err != nil {
		return err
	}

	for _, subj := range m.Subjects {
		merged := model.MergeRelations(m.Relations, subj.Relations)

		printRelationTree(subj, merged)
		fmt.Fprintln(outputWriter)

		printHeader("Subject: %s", subj.Name)
		fmt.Fprintln(outputWriter)

		printSection("Seed Tables")
		for _, seed := range subj.Tables {
			if seed.Values == nil {
				fmt.Fprintf(outputWriter, "  • %s (whole table)\n", seed.Table)
			} else {
				fmt.Fprintf(outputWriter, "  • %s WHERE %s IN (%d value(s))\n", seed.Table, seed.Col, len(seed.Values))
			}
		}

		fmt.Fprintln(outputWriter)
		printSection("Relations")
		for _, r := range merged {
			printRelationLine(r)
		}
		fmt.Fprintln(outputWriter)
	}

	return nil
}

func printRelationLine(r model.Relation) {
	label := relationLabel(r)
	sticky := ""
	if r.PropagateSticky {
		sticky = color.FgGreen.Render(" [propagate_sticky]")
	}
	if r.OnlyIfSticky {
		sticky += color.FgYellow.Render(" [only_if_sticky]")
	}

	if r.PropagateSticky || r.OnlyIfSticky {
		fmt.Fprintf(outputWriter, "  %s%s\n", color.FgCyan.Render(label), sticky)
		return
	}
	fmt.Fprintf(outputWriter, "  %s\n", label)
}

func relationLabel(r model.Relation) string {
	switch r.Kind {
	case model.KindWholeTable:
		return fmt.Sprintf("* -> %s (whole table)", r.Table)
	case model.KindIncomingFK:
		return fmt.Sprintf("%s -> %s (incoming FK %s)", r.FK.SrcTable, r.FK.DstTable, strings.Join(r.FK.SrcCols, ","))
	default: // KindOutgoingFK
		return fmt.Sprintf("%s -> %s (outgoing FK %s)", r.FK.SrcTable, r.FK.DstTable, strings.Join(r.FK.SrcCols, ","))
	}
}

// printHeader prints a formatted header.
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header.
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// treeEdge is one step of a relation walk: dst reached via a
// relation labeled label.
type treeEdge struct {
	label string
	dst   string
}

// printRelationTree prints an ASCII tree of a subject's relation
// adjacency rooted at its seed tables, box-drawing style. Whole-table
// relations have no traversing edge (they seed a table directly, not
// via an FK from another node in the tree) and are listed as
// additional roots.
func printRelationTree(subj model.Subject, relations []model.Relation) {
	fmt.Fprintln(outputWriter)
	printHeader("Relation Tree: %s", subj.Name)
	fmt.Fprintln(outputWriter)

	adj := make(map[string][]treeEdge)
	var wholeTables []string
	for _, r := range relations {
		switch r.Kind {
		case model.KindWholeTable:
			wholeTables = append(wholeTables, r.Table)
		case model.KindIncomingFK:
			adj[r.FK.DstTable] = append(adj[r.FK.DstTable], treeEdge{
				label: "incoming FK " + strings.Join(r.FK.SrcCols, ","),
				dst:   r.FK.SrcTable,
			})
		default: // KindOutgoingFK
			adj[r.FK.SrcTable] = append(adj[r.FK.SrcTable], treeEdge{
				label: "outgoing FK " + strings.Join(r.FK.SrcCols, ","),
				dst:   r.FK.DstTable,
			})
		}
	}

	roots := make([]string, 0, len(subj.Tables)+len(wholeTables))
	for _, seed := range subj.Tables {
		roots = append(roots, seed.Table)
	}
	roots = append(roots, wholeTables...)

	for i, root := range roots {
		fmt.Fprintln(outputWriter, root)
		printTreeChildren(adj, root, "", map[string]bool{root: true})
		if i < len(roots)-1 {
			fmt.Fprintln(outputWriter)
		}
	}
}

// printTreeChildren walks adj below node, indenting with box-drawing
// characters. ancestors tracks the current root-to-node path so a
// cyclic foreign key (e.g. a self-referential manager_id) prints once
// and stops instead of recursing forever.
func printTreeChildren(adj map[string][]treeEdge, node, prefix string, ancestors map[string]bool) {
	children := adj[node]
	for i, c := range children {
		branch, nextPrefix := "├── ", prefix+"│   "
		if i == len(children)-1 {
			branch, nextPrefix = "└── ", prefix+"    "
		}

		cyclic := ancestors[c.dst]
		suffix := ""
		if cyclic {
			suffix = " (cycle)"
		}
		fmt.Fprintf(outputWriter, "%s%s%s (%s)%s\n", prefix, branch, c.dst, c.label, suffix)
		if cyclic {
			continue
		}

		next := make(map[string]bool, len(ancestors)+1)
		for k := range ancestors {
			next[k] = true
		}
		next[c.dst] = true
		printTreeChildren(adj, c.dst, nextPrefix, next)
	}
}
