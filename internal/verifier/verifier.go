// Package verifier checks that a replay write landed exactly the rows
// the extraction engine produced: grounded on the teacher's own
// source-vs-destination verifier, adapted to compare the engine's
// flat_results() output against what actually reached the destination
// database rather than comparing two live databases against each
// other.
package verifier

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/abridge/internal/extractor"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/schema"
	"github.com/dbsmedya/abridge/internal/sqlutil"
)

// Method defines how to verify a replayed table.
type Method string

const (
	// MethodCount uses simple row count comparison (fast).
	MethodCount Method = "count"
	// MethodSHA256 hashes every expected row's column values and
	// compares against a hash computed the same way over what's
	// actually in the destination table (slower but thorough).
	MethodSHA256 Method = "sha256"
	// MethodSkip skips verification entirely.
	MethodSkip Method = "skip"
)

// TableResult holds verification results for a single table.
type TableResult struct {
	Table        string
	ExpectedRows int64
	ActualRows   int64
	ExpectedHash string
	ActualHash   string
	Match        bool
	ErrorMessage string
}

// Stats contains overall verification statistics.
type Stats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TotalRows      int64
	Method         Method
}

// Verifier compares the extraction engine's flat_results() output
// against the rows a replay write left in a destination database.
type Verifier struct {
	destination *sql.DB
	schema      *schema.Schema
	method      Method
	logger      *logger.Logger
}

// New creates a Verifier against the given destination connection and
// schema. method defaults to MethodCount if empty.
func New(destination *sql.DB, s *schema.Schema, method Method, log *logger.Logger) (*Verifier, error) {
	if destination == nil {
		return nil, fmt.Errorf("destination database is nil")
	}
	if s == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodCount
	}

	return &Verifier{destination: destination, schema: s, method: method, logger: log}, nil
}

// Verify compares every table present in flatResults against the
// destination database, grouping rows by table first.
func (v *Verifier) Verify(ctx context.Context, flatResults []extractor.FlatResult) (*Stats, error) {
	if v.method == MethodSkip {
		v.logger.Info("verification skipped (method=skip)")
		return &Stats{Method: MethodSkip}, nil
	}

	byTable := make(map[string][][]interface{})
	var order []string
	for _, fr := range flatResults {
		if _, ok := byTable[fr.Table]; !ok {
			order = append(order, fr.Table)
		}
		byTable[fr.Table] = append(byTable[fr.Table], fr.Row)
	}
	sort.Strings(order)

	stats := &Stats{Method: v.method}
	v.logger.Infow("starting verification", "method", v.method, "tables", len(order))

	for _, table := range order {
		rows := byTable[table]

		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		t := v.schema.Table(table)
		if t == nil {
			return stats, fmt.Errorf("verify: unknown table %q", table)
		}

		var result *TableResult
		var err error
		switch v.method {
		case MethodCount:
			result, err = v.verifyByCount(ctx, t, rows)
		case MethodSHA256:
			result, err = v.verifyBySHA256(ctx, t, rows)
		default:
			return stats, fmt.Errorf("unsupported verification method: %s", v.method)
		}
		if err != nil {
			return stats, fmt.Errorf("verification failed for table %s: %w", table, err)
		}

		stats.TablesVerified++
		stats.TotalRows += result.ExpectedRows

		if result.Match {
			stats.TablesPassed++
			v.logger.Debugw("table verified", "table", table, "rows", result.ExpectedRows)
		} else {
			stats.TablesFailed++
			v.logger.Errorw("table verification failed", "table", table, "error", result.ErrorMessage)
			return stats, fmt.Errorf("verification mismatch in table %s: %s", table, result.ErrorMessage)
		}
	}

	v.logger.Infow("verification complete",
		"tables_verified", stats.TablesVerified, "passed", stats.TablesPassed,
		"failed", stats.TablesFailed, "total_rows", stats.TotalRows)

	return stats, nil
}

func (v *Verifier) verifyByCount(ctx context.Context, t *schema.Table, expected [][]interface{}) (*TableResult, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlutil.QuoteIdentifier(t.Name))
	var actual int64
	if err := v.destination.QueryRowContext(ctx, query).Scan(&actual); err != nil {
		return nil, fmt.Errorf("failed to count destination: %w", err)
	}

	result := &TableResult{
		Table:        t.Name,
		ExpectedRows: int64(len(expected)),
		ActualRows:   actual,
		Match:        int64(len(expected)) == actual,
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, actual=%d", len(expected), actual)
	}
	return result, nil
}

func (v *Verifier) verifyBySHA256(ctx context.Context, t *schema.Table, expected [][]interface{}) (*TableResult, error) {
	cols := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		cols[i] = c.Name
	}

	expectedHash := hashRows(cols, expected)

	query := fmt.Sprintf("SELECT %s FROM %s", quoteCols(cols), sqlutil.QuoteIdentifier(t.Name))
	rows, err := v.destination.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var actualRows [][]interface{}
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, val := range raw {
			if b, ok := val.([]byte); ok {
				raw[i] = string(b)
			}
		}
		actualRows = append(actualRows, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	actualHash := hashRows(cols, actualRows)

	result := &TableResult{
		Table:        t.Name,
		ExpectedRows: int64(len(expected)),
		ActualRows:   int64(len(actualRows)),
		ExpectedHash: expectedHash,
		ActualHash:   actualHash,
		Match:        expectedHash == actualHash && len(expected) == len(actualRows),
	}
	if !result.Match {
		if len(expected) != len(actualRows) {
			result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, actual=%d", len(expected), len(actualRows))
		} else {
			result.ErrorMessage = fmt.Sprintf("hash mismatch: expected=%s, actual=%s", expectedHash[:16], actualHash[:16])
		}
	}
	return result, nil
}

func quoteCols(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlutil.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// hashRows hashes rows order-independently by sorting their
// serialized form first, since destination insert order need not
// match the order flat_results() produced them in.
func hashRows(cols []string, rows [][]interface{}) string {
	serialized := make([]string, len(rows))
	for i, row := range rows {
		serialized[i] = serializeRow(cols, row)
	}
	sort.Strings(serialized)

	hasher := sha256.New()
	for _, s := range serialized {
		hasher.Write([]byte(s))
		hasher.Write([]byte("\n"))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func serializeRow(cols []string, values []interface{}) string {
	parts := make([]string, len(cols))
	for i, v := range values {
		valStr := "NULL"
		if v != nil {
			valStr = fmt.Sprintf("%v", v)
		}
		parts[i] = fmt.Sprintf("%s=%s", cols[i], valStr)
	}
	return strings.Join(parts, "\x00")
}

// SetLogger sets a custom logger for the verifier.
func (v *Verifier) SetLogger(log *logger.Logger) {
	v.logger = log
}

// GetMethod returns the configured verification method.
func (v *Verifier) GetMethod() Method {
	return v.method
}
