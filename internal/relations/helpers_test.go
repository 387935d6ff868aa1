package relations

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/schema"
	"github.com/dbsmedya/gorelations/internal/types"
)

// plantSchema is the factories / machines / workers / servicers / lawyers
// fixture schema.
func plantSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.FromConfig(&config.SchemaConfig{
		Tables: map[string]config.TableConfig{
			"factories": {Relations: []config.RelationConfig{
				{Table: "machines", Type: "hasMany", ForeignKey: "factory_id"},
				{Table: "workers", Type: "manyToMany", Through: "factories_workers", ThroughLocalKey: "factory_id", ThroughRemoteKey: "worker_id"},
			}},
			"machines": {Relations: []config.RelationConfig{
				{Table: "factories", Type: "belongsTo", ForeignKey: "factory_id"},
				{Table: "servicers", Type: "manyToMany", Through: "machines_servicers", ThroughLocalKey: "machine_id", ThroughRemoteKey: "servicer_id"},
			}},
			"workers": {Relations: []config.RelationConfig{
				{Table: "factories", Type: "manyToMany", Through: "factories_workers", ThroughLocalKey: "worker_id", ThroughRemoteKey: "factory_id"},
			}},
			"servicers": {Relations: []config.RelationConfig{
				{Table: "lawyers", Type: "hasOne", ForeignKey: "servicer_id"},
				{Table: "factories", Type: "manyThrough", Pivots: []config.PivotConfig{
					{Table: "servicers", Key: "id", JoinTable: "machines_servicers", JoinKey: "servicer_id"},
					{Table: "machines_servicers", Key: "machine_id", JoinTable: "machines", JoinKey: "id"},
					{Table: "machines", Key: "factory_id", JoinTable: "factories", JoinKey: "id"},
				}},
			}},
			"lawyers": {Relations: []config.RelationConfig{
				{Table: "servicers", Type: "belongsTo", ForeignKey: "servicer_id"},
			}},
		},
	})
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, settings Settings) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e, err := NewEngine(plantSchema(t), db, settings, nil)
	require.NoError(t, err)
	return e, mock
}

func workerColumns() []string {
	return []string{"id", "firstname", "lastname", OriginatingColumn}
}

func factoryRows(ids ...int64) []*types.Row {
	rows := make([]*types.Row, len(ids))
	for i, id := range ids {
		rows[i] = types.RowOf("id", id, "name", "Factory")
	}
	return rows
}

// recordingFetcher is a generic fetcher that remembers every request.
type recordingFetcher struct {
	*TableFetcher
	mu       sync.Mutex
	requests []Request
}

func (f *recordingFetcher) FetchRelated(ctx context.Context, req Request) ([]*types.Row, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.TableFetcher.FetchRelated(ctx, req)
}
