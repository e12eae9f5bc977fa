package replay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/abridge/internal/extractor"
	"github.com/dbsmedya/abridge/internal/lock"
	"github.com/dbsmedya/abridge/internal/logger"
	"github.com/dbsmedya/abridge/internal/schema"
	"github.com/dbsmedya/abridge/internal/verifier"
)

// Result is the outcome of one Runner.Run call.
type Result struct {
	WriteStats  *WriteStats
	VerifyStats *verifier.Stats
	Duration    time.Duration
}

// Runner coordinates one replay of a flat result set into a
// destination database: acquire an advisory lock so two runs can't
// write the same destination concurrently, write the rows, verify
// them, and record the outcome — adapted from the teacher's
// ArchiveOrchestrator, narrowed to the write/verify phases a
// PK-keyed, already-extracted row set needs (no discovery phase, no
// delete phase: replay never touches the source database).
type Runner struct {
	dest     *sql.DB
	driver   string
	writer   *Writer
	verifier *verifier.Verifier
	recorder *Recorder
	logger   *logger.Logger
}

// NewRunner wires a Writer, Verifier and Recorder against the given
// destination connection and schema.
func NewRunner(ctx context.Context, dest *sql.DB, s *schema.Schema, driver string, method verifier.Method, log *logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	w, err := New(dest, s, driver, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	v, err := verifier.New(dest, s, method, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	rec, err := NewRecorder(ctx, dest, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create run recorder: %w", err)
	}

	return &Runner{dest: dest, driver: driver, writer: w, verifier: v, recorder: rec, logger: log}, nil
}

// Run writes results to the destination under a run-scoped advisory
// lock, verifies the write, and records the outcome. Locking
// (internal/lock) is postgres-only; a sqlite destination skips it,
// since sqlite's single-writer semantics already serialize replay
// writes at the database level.
func (r *Runner) Run(ctx context.Context, runName string, results []extractor.FlatResult) (*Result, error) {
	start := time.Now()

	if err := r.recorder.Begin(ctx, runName); err != nil {
		return nil, err
	}

	var result *Result
	attempt := func() error {
		writeStats, err := r.writer.Write(ctx, results)
		if err != nil {
			return fmt.Errorf("write phase: %w", err)
		}

		verifyStats, err := r.verifier.Verify(ctx, results)
		if err != nil {
			return fmt.Errorf("verify phase: %w", err)
		}

		result = &Result{WriteStats: writeStats, VerifyStats: verifyStats, Duration: time.Since(start)}
		return nil
	}

	var runErr error
	if r.driver == "postgres" {
		runErr = lock.WithRunLock(ctx, r.dest, runName, attempt)
	} else {
		runErr = attempt()
	}

	if runErr != nil {
		if failErr := r.recorder.Fail(ctx, runName, runErr); failErr != nil {
			r.logger.Errorw("failed to record run failure", "error", failErr)
		}
		return nil, runErr
	}

	if err := r.recorder.Complete(ctx, runName, result.WriteStats.RowsWritten); err != nil {
		return nil, err
	}

	r.logger.Infow("replay run complete", "run", runName, "duration", result.Duration)
	return result, nil
}
