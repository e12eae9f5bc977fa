package model

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/dbsmedya/abridge/internal/schema"
)

// rawRelation mirrors the on-disk YAML shape of a relation entry.
// Column is sugar for Columns with a single element.
type rawRelation struct {
	Table           string   `yaml:"table" mapstructure:"table"`
	Column          string   `yaml:"column" mapstructure:"column"`
	Columns         []string `yaml:"columns" mapstructure:"columns"`
	Type            string   `yaml:"type" mapstructure:"type"` // "outgoing" or "incoming"
	PropagateSticky bool     `yaml:"propagate_sticky" mapstructure:"propagate_sticky"`
	OnlyIfSticky    bool     `yaml:"only_if_sticky" mapstructure:"only_if_sticky"`
}

type rawSeedTable struct {
	Table  string        `yaml:"table" mapstructure:"table"`
	Col    string        `yaml:"col" mapstructure:"col"`
	Values []interface{} `yaml:"values" mapstructure:"values"`
	Value  interface{}   `yaml:"value" mapstructure:"value"`
}

type rawSubject struct {
	Name      string        `yaml:"name" mapstructure:"name"`
	Tables    []rawSeedTable `yaml:"tables" mapstructure:"tables"`
	Relations []rawRelation `yaml:"relations" mapstructure:"relations"`
}

type rawModel struct {
	Subjects  []rawSubject  `yaml:"subjects" mapstructure:"subjects"`
	Relations []rawRelation `yaml:"relations" mapstructure:"relations"`
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME, mirroring the
// teacher's internal/config env-var substitution convention.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Load reads an extraction-model YAML file and resolves it against the
// given schema, producing a validated Model. Unknown tables/columns
// are configuration errors, surfaced here rather than by the engine
// (spec.md §7 assigns the engine a pre-validated model).
func Load(path string, s *schema.Schema) (*Model, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read extraction model %q: %w", path, err)
	}

	var raw rawModel
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction model: %w", err)
	}

	return resolve(&raw, s)
}

func resolve(raw *rawModel, s *schema.Schema) (*Model, error) {
	globalRelations, err := resolveRelations(raw.Relations, s)
	if err != nil {
		return nil, fmt.Errorf("global relations: %w", err)
	}

	m := &Model{Relations: globalRelations}

	seenSubjects := make(map[string]bool, len(raw.Subjects))
	for _, rs := range raw.Subjects {
		if rs.Name == "" {
			return nil, fmt.Errorf("subject missing a name")
		}
		if seenSubjects[rs.Name] {
			return nil, fmt.Errorf("duplicate subject name %q", rs.Name)
		}
		seenSubjects[rs.Name] = true

		if len(rs.Tables) == 0 {
			return nil, fmt.Errorf("subject %q has no seed tables", rs.Name)
		}

		subject := Subject{Name: rs.Name}

		for _, rt := range rs.Tables {
			tbl := s.Table(rt.Table)
			if tbl == nil {
				return nil, fmt.Errorf("subject %q: unknown table %q", rs.Name, rt.Table)
			}

			seed := SeedTable{Table: rt.Table}
			switch {
			case rt.Values != nil:
				if rt.Col == "" {
					return nil, fmt.Errorf("subject %q: table %q has values but no col", rs.Name, rt.Table)
				}
				if tbl.ColIndex(rt.Col) < 0 {
					return nil, fmt.Errorf("subject %q: unknown column %q on table %q", rs.Name, rt.Col, rt.Table)
				}
				seed.Col = rt.Col
				seed.Values = expandValueStrings(rt.Values)
			case rt.Value != nil:
				if rt.Col == "" {
					return nil, fmt.Errorf("subject %q: table %q has value but no col", rs.Name, rt.Table)
				}
				if tbl.ColIndex(rt.Col) < 0 {
					return nil, fmt.Errorf("subject %q: unknown column %q on table %q", rs.Name, rt.Col, rt.Table)
				}
				seed.Col = rt.Col
				seed.Values = expandValueStrings([]interface{}{rt.Value})
			default:
				// Unfiltered seed: bring in the whole table.
			}

			subject.Tables = append(subject.Tables, seed)
		}

		subjectRelations, err := resolveRelations(rs.Relations, s)
		if err != nil {
			return nil, fmt.Errorf("subject %q relations: %w", rs.Name, err)
		}
		subject.Relations = subjectRelations

		m.Subjects = append(m.Subjects, subject)
	}

	if len(m.Subjects) == 0 {
		return nil, fmt.Errorf("extraction model defines no subjects")
	}

	return m, nil
}

// expandValueStrings runs env-var substitution over any string values,
// leaving other types untouched.
func expandValueStrings(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[i] = expandEnvVar(str)
			continue
		}
		out[i] = v
	}
	return out
}

// resolveRelations turns the on-disk relation shorthand (table + column
// naming one side of a foreign key) into concrete Relation values. A
// WholeTable relation has Type omitted and no column. An OUTGOING
// relation's table owns the foreign key; an INCOMING relation's table
// is the referenced side, and every foreign key elsewhere in the
// schema that targets table.column expands into its own Relation —
// "pull in everything that refers to this row" is the natural reading
// of an incoming relation with no further disambiguation available in
// the config.
func resolveRelations(raw []rawRelation, s *schema.Schema) ([]Relation, error) {
	var out []Relation

	for _, r := range raw {
		tbl := s.Table(r.Table)
		if tbl == nil {
			return nil, fmt.Errorf("unknown table %q", r.Table)
		}

		cols := r.Columns
		if len(cols) == 0 && r.Column != "" {
			cols = []string{r.Column}
		}

		if r.Type == "" && len(cols) == 0 {
			out = append(out, Relation{
				Table:           r.Table,
				Kind:            KindWholeTable,
				PropagateSticky: r.PropagateSticky,
				OnlyIfSticky:    r.OnlyIfSticky,
			})
			continue
		}

		if len(cols) == 0 {
			return nil, fmt.Errorf("relation on %q: column(s) required for type %q", r.Table, r.Type)
		}

		switch strings.ToLower(r.Type) {
		case "outgoing":
			fk := findForeignKeyBySrc(tbl, cols)
			if fk == nil {
				return nil, fmt.Errorf("no outgoing foreign key on %q for columns %v", r.Table, cols)
			}
			out = append(out, Relation{
				Table:           r.Table,
				Kind:            KindOutgoingFK,
				FK:              fk,
				PropagateSticky: r.PropagateSticky,
				OnlyIfSticky:    r.OnlyIfSticky,
			})
		case "incoming":
			fks := findForeignKeysByDst(s, r.Table, cols)
			if len(fks) == 0 {
				return nil, fmt.Errorf("no incoming foreign key references %q%v", r.Table, cols)
			}
			for _, fk := range fks {
				out = append(out, Relation{
					Table:           r.Table,
					Kind:            KindIncomingFK,
					FK:              fk,
					PropagateSticky: r.PropagateSticky,
					OnlyIfSticky:    r.OnlyIfSticky,
				})
			}
		default:
			return nil, fmt.Errorf("relation on %q: unknown type %q (want outgoing or incoming)", r.Table, r.Type)
		}
	}

	return out, nil
}

func sameCols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func findForeignKeyBySrc(tbl *schema.Table, cols []string) *schema.ForeignKey {
	for i := range tbl.ForeignKeys {
		if sameCols(tbl.ForeignKeys[i].SrcCols, cols) {
			return &tbl.ForeignKeys[i]
		}
	}
	return nil
}

func findForeignKeysByDst(s *schema.Schema, dstTable string, dstCols []string) []*schema.ForeignKey {
	var out []*schema.ForeignKey
	for _, tbl := range s.Tables() {
		for i := range tbl.ForeignKeys {
			fk := &tbl.ForeignKeys[i]
			if fk.DstTable == dstTable && sameCols(fk.DstCols, dstCols) {
				out = append(out, fk)
			}
		}
	}
	return out
}
