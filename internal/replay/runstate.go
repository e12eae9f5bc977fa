package replay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/abridge/internal/logger"
)

// Status is the outcome of one replay run, recorded for operator
// visibility. Unlike the teacher's ResumeManager, this is a pure
// audit trail, not a checkpoint: spec.md §7 designs the engine to be
// re-run from scratch on failure, not resumed, so there is no partial
// progress to persist mid-write — Writer.Write is all-or-nothing
// inside one transaction (see spec.md §9 open question notes carried
// into DESIGN.md).
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// createRunTableSQL creates the audit table in postgres, the
// destination-side analogue of the teacher's MySQL archiver_job table.
const createRunTableSQL = `
CREATE TABLE IF NOT EXISTS abridge_replay_run (
	run_name    TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	rows_written BIGINT NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
)`

// RunRecord is one row of the audit trail.
type RunRecord struct {
	RunName      string
	Status       Status
	RowsWritten  int64
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
}

// Recorder persists replay run outcomes to the destination database.
type Recorder struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecorder creates a Recorder and ensures its audit table exists.
func NewRecorder(ctx context.Context, db *sql.DB, log *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	if _, err := db.ExecContext(ctx, createRunTableSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize replay run audit table: %w", err)
	}

	return &Recorder{db: db, logger: log}, nil
}

// Begin records the start of a run, overwriting any prior record for
// the same run name (a run name is reused across repeated full
// re-runs, per spec.md §7's "re-run from scratch" model).
func (r *Recorder) Begin(ctx context.Context, runName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO abridge_replay_run (run_name, status, started_at, finished_at, rows_written, error_message)
		VALUES ($1, $2, now(), NULL, 0, NULL)
		ON CONFLICT (run_name) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			finished_at = NULL,
			rows_written = 0,
			error_message = NULL
	`, runName, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	r.logger.Infow("replay run started", "run", runName)
	return nil
}

// Complete marks a run as completed with the given row count.
func (r *Recorder) Complete(ctx context.Context, runName string, rowsWritten int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE abridge_replay_run
		SET status = $2, rows_written = $3, finished_at = now()
		WHERE run_name = $1
	`, runName, StatusCompleted, rowsWritten)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}
	r.logger.Infow("replay run completed", "run", runName, "rows", rowsWritten)
	return nil
}

// Fail marks a run as failed with the triggering error's message.
func (r *Recorder) Fail(ctx context.Context, runName string, cause error) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE abridge_replay_run
		SET status = $2, error_message = $3, finished_at = now()
		WHERE run_name = $1
	`, runName, StatusFailed, cause.Error())
	if err != nil {
		return fmt.Errorf("failed to record run failure: %w", err)
	}
	r.logger.Warnw("replay run failed", "run", runName, "error", cause)
	return nil
}

// Last returns the most recent record for runName, or nil if the run
// has never been attempted.
func (r *Recorder) Last(ctx context.Context, runName string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_name, status, rows_written, COALESCE(error_message, ''), started_at, finished_at
		FROM abridge_replay_run WHERE run_name = $1
	`, runName)

	var rec RunRecord
	var status string
	if err := row.Scan(&rec.RunName, &status, &rec.RowsWritten, &rec.ErrorMessage, &rec.StartedAt, &rec.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}
	rec.Status = Status(status)
	return &rec, nil
}
