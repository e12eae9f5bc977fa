// Package lock provides postgres advisory locking, grounded on the
// teacher's MySQL GET_LOCK()-based advisory lock but adapted to
// postgres's bigint-keyed pg_advisory_lock family: prevents two
// replay runs from writing the same destination tables concurrently.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another run is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition.
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired.
	TimeoutImmediate = 0 * time.Second
	// TimeoutShort is suitable for fast-failing duplicate run detection.
	TimeoutShort = 1 * time.Second
	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10 * time.Second
	// TimeoutLong allows extended waiting for lock acquisition.
	TimeoutLong = 60 * time.Second
)

// pollInterval is how often AcquireLock retries pg_try_advisory_lock
// while waiting out a timeout.
const pollInterval = 100 * time.Millisecond

// AdvisoryLock represents a postgres session-level advisory lock,
// keyed by a name hashed down to the bigint pg_advisory_lock expects.
// It is automatically released when the connection closes or
// ReleaseLock is called.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	key      int64
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
		key:      lockKey(lockName),
	}
}

// lockKey deterministically maps a lock name to the int64 key
// pg_advisory_lock requires.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// AcquireLock attempts to acquire the advisory lock, polling
// pg_try_advisory_lock until it succeeds, timeout elapses, or ctx is
// canceled. Returns true if the lock was acquired, false on timeout.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeout time.Duration) (bool, error) {
	if a.held {
		return true, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		acquired, err := a.tryAcquireOnce(ctx)
		if err != nil {
			return false, err
		}
		if acquired {
			a.held = true
			return true, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
		if time.Now().After(deadline) {
			return false, nil
		}
	}
}

func (a *AdvisoryLock) tryAcquireOnce(ctx context.Context) (bool, error) {
	var acquired bool
	err := a.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.key).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
	}
	return acquired, nil
}

// ReleaseLock releases the advisory lock. Returns true if the lock
// was released, false if it was not held by this session.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var released bool
	err := a.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", a.key).Scan(&released)
	if err != nil {
		return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
	}

	a.held = false
	return released, nil
}

// IsHeld returns true if this lock is currently held by this session.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock immediately without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail attempts to acquire the lock with TimeoutShort.
// Returns ErrLockTimeout if another run holds the lock.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another run", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateRunLockName creates a consistent lock name for an abridge
// run, namespaced to avoid conflicts with unrelated postgres advisory
// locks sharing the same database.
func GenerateRunLockName(runName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, runName)

	return fmt.Sprintf("abridge:run:%s", sanitized)
}

// NewRunLock creates a new advisory lock for a specific abridge run,
// with the lock name generated via GenerateRunLockName.
func NewRunLock(db *sql.DB, runName string) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateRunLockName(runName))
}

// IsRunActive checks whether a specific run's lock is currently held
// by attempting to acquire it immediately. The check is not atomic:
// the run's state can change right after this returns.
func IsRunActive(ctx context.Context, db *sql.DB, runName string) (bool, error) {
	lock := NewRunLock(db, runName)

	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check if run %q is active: %w", runName, err)
	}
	if acquired {
		_, _ = lock.ReleaseLock(ctx)
		return false, nil
	}
	return true, nil
}

// WithLock executes fn while holding the advisory lock, releasing it
// afterward even if fn panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeout time.Duration, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another run", ErrLockTimeout, a.lockName)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}

// WithRunLock executes fn while holding a run-specific advisory lock,
// acquired with TimeoutShort.
func WithRunLock(ctx context.Context, db *sql.DB, runName string, fn func() error) error {
	lock := NewRunLock(db, runName)
	return lock.WithLock(ctx, TimeoutShort, fn)
}
