package lock

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var (
	getLockQuery     = regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")
	releaseLockQuery = regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *AdvisoryLock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, func() *AdvisoryLock { return NewAdvisoryLock(db, "gorelations:pivot:factories_workers") }
}

func lockResult(v any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"result"}).AddRow(v)
}

func TestAcquireAndRelease(t *testing.T) {
	mock, newLock := newMock(t)
	l := newLock()

	mock.ExpectQuery(getLockQuery).WithArgs(l.Name(), TimeoutMedium).WillReturnRows(lockResult(int64(1)))
	mock.ExpectQuery(releaseLockQuery).WithArgs(l.Name()).WillReturnRows(lockResult(int64(1)))

	ok, err := l.Acquire(context.Background(), TimeoutMedium)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if !l.IsHeld() {
		t.Error("lock should be held")
	}

	// a held lock is not requested twice
	if ok, err := l.Acquire(context.Background(), TimeoutMedium); err != nil || !ok {
		t.Fatalf("second Acquire = %v, %v", ok, err)
	}

	released, err := l.Release(context.Background())
	if err != nil || !released {
		t.Fatalf("Release = %v, %v", released, err)
	}
	if l.IsHeld() {
		t.Error("lock should not be held after release")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestAcquire_Timeout(t *testing.T) {
	mock, newLock := newMock(t)
	l := newLock()
	mock.ExpectQuery(getLockQuery).WillReturnRows(lockResult(int64(0)))

	ok, err := l.Acquire(context.Background(), TimeoutImmediate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || l.IsHeld() {
		t.Error("lock should not be acquired")
	}
}

func TestAcquire_NullAndErrors(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		want   string
	}{
		{
			name:   "null result",
			expect: func(m sqlmock.Sqlmock) { m.ExpectQuery(getLockQuery).WillReturnRows(lockResult(nil)) },
			want:   "returned NULL",
		},
		{
			name:   "query error",
			expect: func(m sqlmock.Sqlmock) { m.ExpectQuery(getLockQuery).WillReturnError(errors.New("gone away")) },
			want:   "failed to execute GET_LOCK",
		},
		{
			name:   "unexpected value",
			expect: func(m sqlmock.Sqlmock) { m.ExpectQuery(getLockQuery).WillReturnRows(lockResult(int64(7))) },
			want:   "unexpected GET_LOCK return value: 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, newLock := newMock(t)
			tt.expect(mock)

			_, err := newLock().Acquire(context.Background(), TimeoutShort)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRelease_NotHeld(t *testing.T) {
	mock, newLock := newMock(t)

	released, err := newLock().Release(context.Background())
	if err != nil || released {
		t.Errorf("Release = %v, %v", released, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query expected: %v", err)
	}
}

func TestWithLock(t *testing.T) {
	mock, newLock := newMock(t)
	l := newLock()

	mock.ExpectQuery(getLockQuery).WillReturnRows(lockResult(int64(1)))
	mock.ExpectQuery(releaseLockQuery).WillReturnRows(lockResult(int64(1)))

	ran := false
	err := l.WithLock(context.Background(), TimeoutShort, func() error {
		ran = true
		if !l.IsHeld() {
			t.Error("lock should be held inside fn")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock failed: %v", err)
	}
	if !ran {
		t.Error("fn did not run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	mock, newLock := newMock(t)

	mock.ExpectQuery(getLockQuery).WillReturnRows(lockResult(int64(1)))
	mock.ExpectQuery(releaseLockQuery).WillReturnRows(lockResult(int64(1)))

	boom := errors.New("insert failed")
	err := newLock().WithLock(context.Background(), TimeoutShort, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("lock was not released: %v", err)
	}
}

func TestWithLock_Timeout(t *testing.T) {
	mock, newLock := newMock(t)
	mock.ExpectQuery(getLockQuery).WillReturnRows(lockResult(int64(0)))

	err := newLock().WithLock(context.Background(), TimeoutShort, func() error {
		t.Error("fn must not run without the lock")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("error = %v, want ErrLockTimeout", err)
	}
}

func TestPivotLockName(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{"factories_workers", "gorelations:pivot:factories_workers"},
		{"odd table;name", "gorelations:pivot:odd_table_name"},
	}
	for _, tt := range tests {
		if got := PivotLockName(tt.table); got != tt.want {
			t.Errorf("PivotLockName(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}

	long := PivotLockName(strings.Repeat("x", 80))
	if len(long) > maxNameLength {
		t.Errorf("name too long: %d", len(long))
	}
	if long != PivotLockName(strings.Repeat("x", 80)) {
		t.Error("digest names must be stable")
	}
}

func TestWithPivotLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(getLockQuery).
		WithArgs("gorelations:pivot:factories_workers", TimeoutMedium).
		WillReturnRows(lockResult(int64(1)))
	mock.ExpectQuery(releaseLockQuery).
		WithArgs("gorelations:pivot:factories_workers").
		WillReturnRows(lockResult(int64(1)))

	ran := false
	err = WithPivotLock(context.Background(), db, "factories_workers", TimeoutMedium, func() error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithPivotLock = %v, ran=%v", err, ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
