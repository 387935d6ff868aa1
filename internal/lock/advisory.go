// Package lock provides MySQL named locks that serialise pivot table rewrites
// across gorelations processes.
package lock

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when another session holds the lock past the timeout.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	TimeoutImmediate = 0
	TimeoutShort     = 1
	TimeoutMedium    = 10
	// MySQL treats negative values as infinite wait.
	TimeoutInfinite = -1
)

// maxNameLength is MySQL's limit for GET_LOCK names.
const maxNameLength = 64

// Querier runs single-row queries. GET_LOCK belongs to a session, so callers
// pass a *sql.Conn rather than a pool.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AdvisoryLock is a MySQL named lock held through one session.
type AdvisoryLock struct {
	conn Querier
	name string
	held bool
}

// NewAdvisoryLock creates a lock; it is not acquired until Acquire is called.
func NewAdvisoryLock(conn Querier, name string) *AdvisoryLock {
	return &AdvisoryLock{conn: conn, name: name}
}

// Acquire waits up to timeoutSeconds for the lock. It reports false when the
// timeout passed without obtaining it.
//
// GET_LOCK returns 1 on success, 0 on timeout and NULL on error.
func (a *AdvisoryLock) Acquire(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	var result sql.NullInt64
	err := a.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.name, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}
	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q", a.name)
	}

	switch result.Int64 {
	case 1:
		a.held = true
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release releases the lock. It reports false when this session did not hold it.
func (a *AdvisoryLock) Release(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var result sql.NullInt64
	err := a.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.name).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	a.held = false
	if !result.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.name)
	}
	return result.Int64 == 1, nil
}

// IsHeld reports whether this instance holds the lock.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// Name returns the lock name.
func (a *AdvisoryLock) Name() string {
	return a.name
}

// WithLock runs fn while holding the lock and releases it afterwards, also
// when fn panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.Acquire(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another session", ErrLockTimeout, a.name)
	}

	defer func() {
		// The caller's context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.Release(releaseCtx)
	}()

	return fn()
}

// PivotLockName returns the lock name guarding writes to a pivot table.
// Names longer than MySQL allows are replaced by a digest.
func PivotLockName(pivotTable string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, pivotTable)

	name := "gorelations:pivot:" + sanitized
	if len(name) > maxNameLength {
		sum := sha1.Sum([]byte(pivotTable))
		name = "gorelations:pivot:" + hex.EncodeToString(sum[:])
	}
	return name
}

// WithPivotLock pins one connection of db, holds the pivot table lock on it
// and runs fn.
func WithPivotLock(ctx context.Context, db *sql.DB, pivotTable string, timeoutSeconds int, fn func() error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection for lock: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return NewAdvisoryLock(conn, PivotLockName(pivotTable)).WithLock(ctx, timeoutSeconds, fn)
}
