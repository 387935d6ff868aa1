package relations

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gorelations/internal/types"
)

func factoryAccessor(t *testing.T, e *Engine, id int64) *Accessor {
	t.Helper()
	a, err := e.Accessor("factories", types.RowOf("id", id, "name", "Factory"))
	require.NoError(t, err)
	return a
}

func expectWorkers(mock sqlmock.Sqlmock, factory int64, workers ...int64) {
	rows := sqlmock.NewRows(workerColumns())
	for _, w := range workers {
		rows.AddRow(w, "First", "Last", factory)
	}
	mock.ExpectQuery(regexp.QuoteMeta(factoryWorkersSQL + " = ?")).WithArgs(factory).WillReturnRows(rows)
}

func TestAccessor_New(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())

	_, err := e.Accessor("robots", types.RowOf("id", 1))
	assert.ErrorIs(t, err, ErrNotRelatable)

	_, err = e.Accessor("factories", types.RowOf("name", "no id"))
	assert.ErrorIs(t, err, ErrMissingProperty)

	_, err = e.Accessor("factories", nil)
	assert.ErrorIs(t, err, ErrMissingProperty)

	a, err := e.Accessor("factory", types.RowOf("id", 7))
	require.NoError(t, err)
	assert.Equal(t, 7, a.ID())
}

func TestAccessor_AddHasRemove(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `factories_workers` (`factory_id`,`worker_id`) VALUES (?,?)")).
		WithArgs(1, 9).
		WillReturnResult(sqlmock.NewResult(10, 1))
	expectWorkers(mock, 1, 1, 2, 3, 4, 9)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `factories_workers` WHERE `factory_id` = ? AND `worker_id` IN (?)")).
		WithArgs(1, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWorkers(mock, 1, 1, 2, 3, 4)

	require.NoError(t, a.Add(ctx, "workers", 9))
	has, err := a.Has(ctx, "workers", 9)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, a.Remove(ctx, "workers", 9))
	has, err = a.Has(ctx, "workers", 9)
	require.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_SetEmptyClears(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `factories_workers` WHERE `factory_id` = ?")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 4))
	expectWorkers(mock, 1)

	require.NoError(t, a.Set(ctx, "workers"))
	has, err := a.Has(ctx, "workers")
	require.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_SetReplaces(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 2)
	a.Row().Set("workers", []*types.Row{types.RowOf("id", int64(4))})

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `factories_workers` WHERE `factory_id` = ?")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `factories_workers` (`factory_id`,`worker_id`) VALUES (?,?),(?,?)")).
		WithArgs(2, 5, 2, 6).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, a.Set(context.Background(), "workers", 5, 6, 5))
	assert.False(t, a.Row().Has("workers"), "cached relation must be invalidated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_MutationErrorsPropagateInSilentMode(t *testing.T) {
	settings := DefaultSettings()
	settings.Silent = true
	e, mock := newTestEngine(t, settings)
	a := factoryAccessor(t, e, 1)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `factories_workers`")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `factories_workers`")).
		WillReturnError(errors.New("duplicate entry"))

	err := a.Set(context.Background(), "workers", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate entry")

	err = a.Add(context.Background(), "robots", 1)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestAccessor_InvalidOperation(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)
	ctx := context.Background()

	assert.ErrorIs(t, a.Add(ctx, "machines", 1), ErrInvalidOperation)
	assert.ErrorIs(t, a.Remove(ctx, "machines", 1), ErrInvalidOperation)
	assert.ErrorIs(t, a.Set(ctx, "machines"), ErrInvalidOperation)

	err := a.Add(ctx, "machines", 1)
	assert.Equal(t, "operation add not valid on hasMany", err.Error())
}

func TestAccessor_AddNoKeysIsNoop(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)

	require.NoError(t, a.Add(context.Background(), "workers"))
	require.NoError(t, a.Remove(context.Background(), "workers", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_GetCachesAndCollapses(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	ctx := context.Background()

	machine, err := e.Accessor("machines", types.RowOf("id", int64(3), "factory_id", int64(3)))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(machineFactorySQL + " = ?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", OriginatingColumn}).
			AddRow(int64(3), "Widget Works", int64(3)))

	v, err := machine.Get(ctx, "factories")
	require.NoError(t, err)
	factory, ok := v.(*types.Row)
	require.True(t, ok)
	assert.Equal(t, int64(3), factory.Value("id"))

	// Second access is served from the row.
	v, err = machine.Get(ctx, "factory")
	require.NoError(t, err)
	assert.Same(t, factory, v)

	key, err := machine.Keys(ctx, "factories")
	require.NoError(t, err)
	assert.Equal(t, int64(3), key)

	has, err := machine.Has(ctx, "factories", 3)
	require.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_GetEmptyIsNil(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 4)
	expectWorkers(mock, 4)

	v, err := a.Get(context.Background(), "workers")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, a.Row().Has("workers"))
}

func TestAccessor_HasUsesAttachedData(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)
	a.Row().Set("workers", []*types.Row{
		types.RowOf("id", int64(1)),
		types.RowOf("id", int64(2)),
	})

	ctx := context.Background()
	tests := []struct {
		keys []any
		want bool
	}{
		{nil, true},
		{[]any{1}, true},
		{[]any{"2", 1, 1}, true},
		{[]any{1, 3}, false},
	}
	for _, tt := range tests {
		has, err := a.Has(ctx, "workers", tt.keys...)
		require.NoError(t, err)
		assert.Equal(t, tt.want, has, "keys %v", tt.keys)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_InvokeAndField(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	a := factoryAccessor(t, e, 1)
	ctx := context.Background()

	op, ok := ParseOp("has")
	require.True(t, ok)
	_, ok = ParseOp("attach")
	assert.False(t, ok)

	expectWorkers(mock, 1, 1, 2)
	v, err := a.Invoke(ctx, op, "workers", 2)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	keys, err := a.Invoke(ctx, OpKeys, "worker")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, keys)

	_, err = a.Invoke(ctx, Op("attach"), "workers")
	assert.ErrorIs(t, err, ErrNoSuchOperation)

	name, err := a.Field(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Factory", name)

	workers, err := a.Field(ctx, "workers")
	require.NoError(t, err)
	assert.Len(t, workers, 2)

	_, err = a.Field(ctx, "robots")
	assert.ErrorIs(t, err, ErrNoSuchOperation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_SilentGet(t *testing.T) {
	settings := DefaultSettings()
	settings.Silent = true
	e, mock := newTestEngine(t, settings)

	a, err := e.Accessor("workers", types.RowOf("id", 1))
	require.NoError(t, err)

	v, err := a.Get(context.Background(), "machines")
	require.NoError(t, err)
	assert.Nil(t, v)
	has, err := a.Has(context.Background(), "machines")
	require.NoError(t, err)
	assert.False(t, has)
	assert.NoError(t, mock.ExpectationsWereMet())
}
