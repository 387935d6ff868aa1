package model

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/relations"
	"github.com/dbsmedya/gorelations/internal/sqlutil"
	"github.com/dbsmedya/gorelations/internal/types"
)

// Query is the call-scoped state of one finder call. Every method returns
// a modified copy; the receiver and the Model are never changed.
type Query struct {
	model *Model

	with                 []string
	without              []string
	reindex              bool
	joins                []clause
	wheres               []clause
	orderBy              []string
	withDeleted          bool
	withDeletedRelations []string
	limit                uint64
	offset               uint64
	err                  error
}

type clause struct {
	sql  any
	args []any
}

func appendCopy[T any](s []T, v ...T) []T {
	out := make([]T, 0, len(s)+len(v))
	out = append(out, s...)
	return append(out, v...)
}

// With adds tables to the relations loaded by default.
func (q Query) With(tables ...string) Query {
	q.with = appendCopy(q.with, tables...)
	return q
}

// WithOnly replaces the relations to load.
func (q Query) WithOnly(tables ...string) Query {
	q.with = appendCopy(nil, tables...)
	return q
}

// WithNone loads no relations.
func (q Query) WithNone() Query {
	q.with = nil
	return q
}

// Without skips tables even if they are requested with With. An invalid
// name makes the finder fail.
func (q Query) Without(tables ...string) Query {
	if err := relations.ValidateWithout(tables); err != nil && q.err == nil {
		q.err = err
	}
	q.without = appendCopy(q.without, tables...)
	return q
}

// Reindex sets whether results are keyed by primary key.
func (q Query) Reindex(enabled bool) Query {
	q.reindex = enabled
	return q
}

// Join adds a join clause, e.g. "machines ON machines.factory_id = factories.id".
// Joined results are never reindexed.
func (q Query) Join(join string, args ...any) Query {
	q.joins = appendCopy(q.joins, clause{sql: join, args: args})
	return q
}

// Where adds a filter. pred is anything squirrel accepts: a string with
// placeholders, sq.Eq, sq.And and so on.
func (q Query) Where(pred any, args ...any) Query {
	q.wheres = appendCopy(q.wheres, clause{sql: pred, args: args})
	return q
}

// OrderBy adds ORDER BY expressions.
func (q Query) OrderBy(exprs ...string) Query {
	q.orderBy = appendCopy(q.orderBy, exprs...)
	return q
}

// WithDeleted includes soft-deleted rows of the model's own table.
func (q Query) WithDeleted() Query {
	q.withDeleted = true
	return q
}

// WithDeletedRelations includes soft-deleted rows of the given related tables.
func (q Query) WithDeletedRelations(tables ...string) Query {
	q.withDeletedRelations = appendCopy(q.withDeletedRelations, tables...)
	return q
}

// Limit caps the number of rows.
func (q Query) Limit(n uint64) Query {
	q.limit = n
	return q
}

// Offset skips rows.
func (q Query) Offset(n uint64) Query {
	q.offset = n
	return q
}

// Selection returns the relation selection this query would attach with.
func (q Query) Selection() relations.Selection {
	return relations.Selection{
		With:        q.with,
		Without:     q.without,
		Reindex:     q.reindex,
		Joined:      len(q.joins) > 0,
		WithDeleted: q.withDeletedRelations,
	}
}

// builder returns the select for the primary rows.
func (q Query) builder() sq.SelectBuilder {
	m := q.model
	b := sq.Select(sqlutil.QualifyAll(m.table)).From(sqlutil.QuoteIdentifier(m.table))
	for _, j := range q.joins {
		b = b.Join(fmt.Sprint(j.sql), j.args...)
	}
	if m.softDeletes && !q.withDeleted {
		b = b.Where(sq.Eq{sqlutil.Qualify(m.table, m.deletedField): nil})
	}
	for _, w := range q.wheres {
		b = b.Where(w.sql, w.args...)
	}
	if len(q.orderBy) > 0 {
		b = b.OrderBy(q.orderBy...)
	}
	if q.limit > 0 {
		b = b.Limit(q.limit)
	}
	if q.offset > 0 {
		b = b.Offset(q.offset)
	}
	return b
}

// ToSql returns the primary-row query.
func (q Query) ToSql() (string, []any, error) {
	return q.builder().ToSql()
}

func (q Query) fetch(ctx context.Context, b sq.SelectBuilder) (*types.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	m := q.model

	rows, err := relations.QueryRows(ctx, m.db, b, m.shape)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", m.table, err)
	}
	return m.engine.Attach(ctx, m.table, rows, q.Selection(), relations.Trail{})
}

// FindAll returns every matching row.
func (q Query) FindAll(ctx context.Context) (*types.Result, error) {
	return q.fetch(ctx, q.builder())
}

// FindMany returns the rows with the given primary keys.
func (q Query) FindMany(ctx context.Context, ids []any) (*types.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	ids = types.UniqueKeys(ids)
	if len(ids) == 0 {
		return types.NewResult(nil), nil
	}
	col := sqlutil.Qualify(q.model.table, q.model.primaryKey)
	return q.fetch(ctx, q.builder().Where(sq.Eq{col: ids}))
}

// Find returns the row with the given primary key, or nil.
func (q Query) Find(ctx context.Context, id any) (*types.Row, error) {
	col := sqlutil.Qualify(q.model.table, q.model.primaryKey)
	one := q.Reindex(false).Limit(1)
	res, err := one.fetch(ctx, one.builder().Where(sq.Eq{col: id}))
	if err != nil {
		return nil, err
	}
	return res.First(), nil
}

// First returns the first matching row, or nil.
func (q Query) First(ctx context.Context) (*types.Row, error) {
	one := q.Reindex(false).Limit(1)
	res, err := one.fetch(ctx, one.builder())
	if err != nil {
		return nil, err
	}
	return res.First(), nil
}
