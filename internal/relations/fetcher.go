package relations

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/types"
)

// DBTX is the subset of *sql.DB, *sql.Conn and *sql.Tx the engine needs.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Request is a related-row query handed to a Fetcher.
type Request struct {
	// Origin is the table the relationship starts from.
	Origin string
	// Query selects the target rows plus the originating key column.
	Query sq.SelectBuilder
	// Trail is the recursion state for the fetcher's own relation loading.
	Trail Trail
	// WithDeleted includes soft-deleted target rows.
	WithDeleted bool
}

// Fetcher executes related-row queries for one table. A relation-aware
// fetcher may load relations of the returned rows itself, honouring
// Request.Trail.
type Fetcher interface {
	Table() string
	PrimaryKey() string
	Shape() types.Shape
	FetchRelated(ctx context.Context, req Request) ([]*types.Row, error)
}

// TableFetcher is the generic fetcher used for tables without a registered
// one. It never loads nested relations.
type TableFetcher struct {
	db         DBTX
	table      string
	primaryKey string
	shape      types.Shape
}

// NewTableFetcher creates a generic fetcher.
func NewTableFetcher(db DBTX, table, primaryKey string, shape types.Shape) *TableFetcher {
	return &TableFetcher{db: db, table: table, primaryKey: primaryKey, shape: shape}
}

func (f *TableFetcher) Table() string      { return f.table }
func (f *TableFetcher) PrimaryKey() string { return f.primaryKey }
func (f *TableFetcher) Shape() types.Shape { return f.shape }

// FetchRelated runs the query as is.
func (f *TableFetcher) FetchRelated(ctx context.Context, req Request) ([]*types.Row, error) {
	return QueryRows(ctx, f.db, req.Query, f.shape)
}

// QueryRows runs a select builder and scans every row.
func QueryRows(ctx context.Context, db DBTX, q sq.SelectBuilder, shape types.Shape) ([]*types.Row, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rs.Close()
	}()

	return types.ScanRows(rs, shape)
}
