package relations

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gorelations/internal/types"
)

const factoryMachinesSQL = "SELECT `machines`.*, `machines`.`factory_id` AS originating_id FROM `machines` " +
	"WHERE `machines`.`factory_id`"

func TestAttach_OneQueryPerRelationship(t *testing.T) {
	for _, n := range []int{1, 5, 50} {
		e, mock := newTestEngine(t, DefaultSettings())

		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		rows := factoryRows(ids...)

		mock.ExpectQuery(regexp.QuoteMeta(factoryWorkersSQL)).
			WillReturnRows(sqlmock.NewRows(workerColumns()).
				AddRow(int64(1), "Ada", "Lovelace", int64(1)).
				AddRow(int64(4), "Edsger", "Dijkstra", int64(1)))
		mock.ExpectQuery(regexp.QuoteMeta(factoryMachinesSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "factory_id", OriginatingColumn}).
				AddRow(int64(1), int64(1), int64(1)))

		res, err := e.Attach(context.Background(), "factories", rows, Selection{With: []string{"workers", "machines"}}, Trail{})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet(), "n=%d", n)

		assert.Equal(t, 2, res.Stats.Queries)
		assert.Equal(t, 2, res.Stats.Relations)
		assert.Equal(t, int64(3), res.Stats.Related)

		workers, ok := rows[0].Value("workers").([]*types.Row)
		require.True(t, ok)
		assert.Len(t, workers, 2)
		for _, row := range rows[1:] {
			assert.Equal(t, []*types.Row{}, row.Value("workers"))
			assert.Equal(t, []*types.Row{}, row.Value("machines"))
		}
	}
}

func TestAttach_SingletonIsRowOrNil(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())

	machines := []*types.Row{
		types.RowOf("id", int64(3), "factory_id", int64(3)),
		types.RowOf("id", int64(8), "factory_id", nil),
	}
	mock.ExpectQuery(regexp.QuoteMeta(machineFactorySQL + " IN (?,?)")).
		WithArgs(3, 8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", OriginatingColumn}).
			AddRow(int64(3), "Widget Works", int64(3)))

	_, err := e.Attach(context.Background(), "machines", machines, Selection{With: []string{"factories"}}, Trail{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	factory, ok := machines[0].Value("factory").(*types.Row)
	require.True(t, ok)
	assert.Equal(t, int64(3), factory.Value("id"))

	v, present := machines[1].Get("factory")
	assert.True(t, present)
	assert.Nil(t, v)
	assert.False(t, machines[0].Has("factories"))
}

func TestAttach_WithoutBeatsWith(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	rows := factoryRows(1, 2)

	mock.ExpectQuery(regexp.QuoteMeta(factoryMachinesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", OriginatingColumn}))

	sel := Selection{With: []string{"workers", "machines"}, Without: []string{"workers"}}
	_, err := e.Attach(context.Background(), "factories", rows, sel, Trail{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, rows[0].Has("workers"))
	assert.True(t, rows[0].Has("machines"))
}

func TestAttach_InvalidWithoutFailsEvenSilent(t *testing.T) {
	settings := DefaultSettings()
	settings.Silent = true
	e, _ := newTestEngine(t, settings)

	_, err := e.Attach(context.Background(), "factories", factoryRows(1), Selection{Without: []string{""}}, Trail{})
	assert.ErrorIs(t, err, ErrInvalidWithoutArgument)
}

func TestAttach_Reindex(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())

	res, err := e.Attach(context.Background(), "factories", factoryRows(1, 3, 4), Selection{Reindex: true}, Trail{})
	require.NoError(t, err)
	assert.True(t, res.Reindexed())
	assert.Equal(t, []string{"1", "3", "4"}, res.Keys())

	row, ok := res.Lookup(3, "id")
	require.True(t, ok)
	assert.Equal(t, int64(3), row.Value("id"))

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"id":1,"name":"Factory"},"3":{"id":3,"name":"Factory"},"4":{"id":4,"name":"Factory"}}`, string(data))

	res, err = e.Attach(context.Background(), "factories", factoryRows(1, 3, 4), Selection{Reindex: false}, Trail{})
	require.NoError(t, err)
	assert.False(t, res.Reindexed())
	data, err = json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Factory"},{"id":3,"name":"Factory"},{"id":4,"name":"Factory"}]`, string(data))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttach_JoinDisablesReindex(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())

	res, err := e.Attach(context.Background(), "factories", factoryRows(1, 3), Selection{Reindex: true, Joined: true}, Trail{})
	require.NoError(t, err)
	assert.False(t, res.Reindexed())
	assert.Equal(t, 2, res.Len())
}

func TestAttach_DuplicateKeysFallBackToSequence(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())

	res, err := e.Attach(context.Background(), "factories", factoryRows(1, 1, 2), Selection{Reindex: true}, Trail{})
	require.NoError(t, err)
	assert.False(t, res.Reindexed())
	assert.Equal(t, 3, res.Len())
}

func TestAttach_ShortCircuits(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())

	res, err := e.Attach(context.Background(), "factories", nil, Selection{With: []string{"workers"}}, Trail{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = e.Attach(context.Background(), "factories", []*types.Row{nil}, Selection{With: []string{"workers"}}, Trail{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
	assert.Nil(t, res.First())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttach_MissingPrimaryKey(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())

	rows := []*types.Row{types.RowOf("name", "no id")}
	_, err := e.Attach(context.Background(), "factories", rows, Selection{With: []string{"workers"}}, Trail{})
	assert.ErrorIs(t, err, ErrMissingProperty)
}

func TestAttach_UnknownRelationship(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())
	_, err := e.Attach(context.Background(), "workers", factoryRows(1), Selection{With: []string{"machines"}}, Trail{})
	assert.ErrorIs(t, err, ErrUnknownRelation)

	settings := DefaultSettings()
	settings.Silent = true
	e, mock := newTestEngine(t, settings)
	rows := factoryRows(1)
	res, err := e.Attach(context.Background(), "workers", rows, Selection{With: []string{"machines"}, Reindex: true}, Trail{})
	require.NoError(t, err)
	assert.True(t, res.Reindexed())
	v, ok := rows[0].Get("machines")
	require.True(t, ok, "field is attached even when the lookup failed")
	assert.Equal(t, []*types.Row{}, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttach_SilentLookupFailuresAttachDefaults(t *testing.T) {
	settings := DefaultSettings()
	settings.Silent = true
	e, mock := newTestEngine(t, settings)

	rows := factoryRows(1, 2)
	_, err := e.Attach(context.Background(), "factories", rows,
		Selection{With: []string{"lawyers", "robots"}}, Trail{})
	require.NoError(t, err)

	for _, row := range rows {
		lawyers, ok := row.Get("lawyers")
		require.True(t, ok)
		assert.Equal(t, []*types.Row{}, lawyers)

		robots, ok := row.Get("robots")
		require.True(t, ok)
		assert.Equal(t, []*types.Row{}, robots)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttach_NestedTrail(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		trail    Trail
		want     Trail
	}{
		{
			name:     "nesting allowed",
			settings: Settings{AllowNesting: true, MaxDepth: 3},
			want:     Trail{Depth: 1, Excluded: []string{"workers", "machines"}},
		},
		{
			name:     "nesting disabled",
			settings: Settings{AllowNesting: false, MaxDepth: 3},
			want:     Trail{Depth: 1, Disabled: true},
		},
		{
			name:     "depth cap",
			settings: Settings{AllowNesting: true, MaxDepth: 2},
			trail:    Trail{Depth: 1},
			want:     Trail{Depth: 2, Disabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mock := newTestEngine(t, tt.settings)
			f := &recordingFetcher{TableFetcher: NewTableFetcher(e.DB(), "machines", "id", types.ShapeObject)}
			require.NoError(t, e.Register(f))

			mock.ExpectQuery(regexp.QuoteMeta(factoryMachinesSQL)).
				WillReturnRows(sqlmock.NewRows([]string{"id", OriginatingColumn}))

			sel := Selection{With: []string{"machines"}, Without: []string{"workers"}}
			_, err := e.Attach(context.Background(), "factories", factoryRows(1), sel, tt.trail)
			require.NoError(t, err)
			require.Len(t, f.requests, 1)
			assert.Equal(t, tt.want, f.requests[0].Trail)
		})
	}
}

func TestAttach_WithDeletedRelations(t *testing.T) {
	e, mock := newTestEngine(t, DefaultSettings())
	f := &recordingFetcher{TableFetcher: NewTableFetcher(e.DB(), "machines", "id", types.ShapeObject)}
	require.NoError(t, e.Register(f))

	mock.ExpectQuery(regexp.QuoteMeta(factoryMachinesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", OriginatingColumn}))

	sel := Selection{With: []string{"machines"}, WithDeleted: []string{"machine"}}
	_, err := e.Attach(context.Background(), "factories", factoryRows(1), sel, Trail{})
	require.NoError(t, err)
	require.Len(t, f.requests, 1)
	assert.True(t, f.requests[0].WithDeleted)
}

func TestAttach_Parallel(t *testing.T) {
	settings := DefaultSettings()
	settings.Parallel = true
	e, mock := newTestEngine(t, settings)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(regexp.QuoteMeta(factoryWorkersSQL)).
		WillReturnRows(sqlmock.NewRows(workerColumns()).AddRow(int64(2), "Grace", "Hopper", int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(factoryMachinesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", OriginatingColumn}).AddRow(int64(7), int64(2)))

	rows := factoryRows(1, 2)
	res, err := e.Attach(context.Background(), "factories", rows, Selection{With: []string{"workers", "machines"}}, Trail{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2, res.Stats.Queries)

	assert.Len(t, rows[0].Value("workers"), 1)
	assert.Len(t, rows[0].Value("machines"), 0)
	assert.Len(t, rows[1].Value("workers"), 0)
	assert.Len(t, rows[1].Value("machines"), 1)

	// Field order follows the selection, not completion order.
	assert.Equal(t, []string{"id", "name", "workers", "machines"}, rows[0].Keys())
}
