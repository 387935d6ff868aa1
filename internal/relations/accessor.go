package relations

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/schema"
	"github.com/dbsmedya/gorelations/internal/sqlutil"
	"github.com/dbsmedya/gorelations/internal/types"
)

// Op names an accessor operation.
type Op string

const (
	OpHas    Op = "has"
	OpGet    Op = "get"
	OpKeys   Op = "keys"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpSet    Op = "set"
)

type opFunc func(a *Accessor, ctx context.Context, table string, keys []any) (any, error)

var ops = map[Op]opFunc{
	OpHas: func(a *Accessor, ctx context.Context, table string, keys []any) (any, error) {
		return a.Has(ctx, table, keys...)
	},
	OpGet: func(a *Accessor, ctx context.Context, table string, _ []any) (any, error) {
		return a.Get(ctx, table)
	},
	OpKeys: func(a *Accessor, ctx context.Context, table string, _ []any) (any, error) {
		return a.Keys(ctx, table)
	},
	OpAdd: func(a *Accessor, ctx context.Context, table string, keys []any) (any, error) {
		return nil, a.Add(ctx, table, keys...)
	},
	OpRemove: func(a *Accessor, ctx context.Context, table string, keys []any) (any, error) {
		return nil, a.Remove(ctx, table, keys...)
	},
	OpSet: func(a *Accessor, ctx context.Context, table string, keys []any) (any, error) {
		return nil, a.Set(ctx, table, keys...)
	},
}

// ParseOp converts an operation name.
func ParseOp(s string) (Op, bool) {
	op := Op(s)
	_, ok := ops[op]
	return op, ok
}

// Accessor reads and changes the relations of one fetched row.
type Accessor struct {
	engine *Engine
	table  string
	pk     string
	row    *types.Row
}

// Accessor returns the relation accessor for a row of table. The row must
// carry its primary key.
func (e *Engine) Accessor(table string, row *types.Row) (*Accessor, error) {
	t, ok := e.schema.Table(e.tableName(table))
	if !ok {
		return nil, newError(NotRelatable, table)
	}
	if row == nil || types.IsEmptyKey(row.Value(t.PrimaryKey)) {
		return nil, newError(MissingProperty, t.Name, t.PrimaryKey)
	}
	return &Accessor{engine: e, table: t.Name, pk: t.PrimaryKey, row: row}, nil
}

// Row returns the underlying row.
func (a *Accessor) Row() *types.Row {
	return a.row
}

// ID returns the row's primary key value.
func (a *Accessor) ID() any {
	return a.row.Value(a.pk)
}

// Invoke runs a named operation.
func (a *Accessor) Invoke(ctx context.Context, op Op, table string, keys ...any) (any, error) {
	fn, ok := ops[op]
	if !ok {
		return nil, newError(NoSuchOperation, string(op), a.table)
	}
	return fn(a, ctx, table, keys)
}

// Field returns a row field, or the relations of a related table named by
// its table, singular or plural name.
func (a *Accessor) Field(ctx context.Context, name string) (any, error) {
	if v, ok := a.row.Get(name); ok {
		return v, nil
	}
	if target, ok := a.engine.schema.ResolveName(name); ok {
		if _, related := a.engine.schema.Relationship(a.table, target); related {
			return a.Get(ctx, target)
		}
	}
	return nil, newError(NoSuchOperation, name, a.table)
}

// Get returns the related rows of table: a *types.Row for singleton
// relationships, a []*types.Row otherwise, or nil when nothing matched.
// A non-empty result is cached on the row.
func (a *Accessor) Get(ctx context.Context, table string) (any, error) {
	target := a.engine.tableName(table)
	_, rel, err := a.engine.relationship(a.table, target)
	if err != nil {
		if a.engine.settings.Silent && isLookupError(err) {
			a.engine.log.WithRelation(a.table, target).Warnf("relation lookup failed, returning nil: %v", err)
			return nil, nil
		}
		return nil, err
	}

	field := a.engine.schema.FieldName(target, rel.Singleton)
	if v, ok := a.row.Get(field); ok {
		return nilIfEmpty(v), nil
	}

	set, err := a.engine.resolve(ctx, a.table, target, []any{a.ID()}, Trail{}, nil, false)
	if err != nil {
		return nil, err
	}

	v := nilIfEmpty(set.Value(a.ID()))
	if v != nil {
		a.row.Set(field, v)
	}
	return v, nil
}

// Keys returns the primary keys of the related rows: a single value for
// singleton relationships, a slice otherwise, or nil when nothing matched.
func (a *Accessor) Keys(ctx context.Context, table string) (any, error) {
	v, err := a.Get(ctx, table)
	if err != nil || v == nil {
		return nil, err
	}

	pk := a.engine.Fetcher(a.engine.tableName(table)).PrimaryKey()
	switch related := v.(type) {
	case *types.Row:
		return related.Value(pk), nil
	case []*types.Row:
		keys := make([]any, 0, len(related))
		for _, row := range related {
			keys = append(keys, row.Value(pk))
		}
		return keys, nil
	}
	return nil, nil
}

// Has reports whether the row has any relation in table, or with keys given,
// whether every one of them is related.
func (a *Accessor) Has(ctx context.Context, table string, keys ...any) (bool, error) {
	v, err := a.Keys(ctx, table)
	if err != nil || v == nil {
		return false, err
	}

	present := make(map[string]bool)
	switch k := v.(type) {
	case []any:
		for _, key := range k {
			present[types.KeyOf(key)] = true
		}
	default:
		present[types.KeyOf(k)] = true
	}

	keys = types.UniqueKeys(keys)
	if len(keys) == 0 {
		return len(present) > 0, nil
	}
	for _, key := range keys {
		if !present[types.KeyOf(key)] {
			return false, nil
		}
	}
	return true, nil
}

// Add links the given keys of table to the row.
func (a *Accessor) Add(ctx context.Context, table string, keys ...any) error {
	p, err := a.pivotFor(OpAdd, table)
	if err != nil {
		return err
	}
	defer a.invalidate(p.target)

	return a.insert(ctx, p, types.UniqueKeys(keys))
}

// Remove unlinks the given keys of table from the row.
func (a *Accessor) Remove(ctx context.Context, table string, keys ...any) error {
	p, err := a.pivotFor(OpRemove, table)
	if err != nil {
		return err
	}
	defer a.invalidate(p.target)

	keys = types.UniqueKeys(keys)
	if len(keys) == 0 {
		return nil
	}

	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(p.table)).
		Where(sq.Eq{
			sqlutil.QuoteIdentifier(p.originColumn): a.ID(),
			sqlutil.QuoteIdentifier(p.targetColumn): keys,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build pivot delete: %w", err)
	}
	if _, err := a.engine.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove %s from %s %v: %w", p.target, a.table, a.ID(), err)
	}
	return nil
}

// Set replaces the row's links to table with keys. The delete and insert are
// separate statements; a failed insert leaves the row unlinked.
func (a *Accessor) Set(ctx context.Context, table string, keys ...any) error {
	p, err := a.pivotFor(OpSet, table)
	if err != nil {
		return err
	}
	defer a.invalidate(p.target)

	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(p.table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(p.originColumn): a.ID()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build pivot delete: %w", err)
	}
	if _, err := a.engine.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear %s for %s %v: %w", p.target, a.table, a.ID(), err)
	}

	return a.insert(ctx, p, types.UniqueKeys(keys))
}

type pivotTarget struct {
	target       string
	table        string
	originColumn string
	targetColumn string
}

// pivotFor returns the pivot table of a manyToMany relationship. Lookup
// failures are returned even in silent mode.
func (a *Accessor) pivotFor(op Op, table string) (pivotTarget, error) {
	target := a.engine.tableName(table)
	_, rel, err := a.engine.relationship(a.table, target)
	if err != nil {
		return pivotTarget{}, err
	}
	if rel.Kind != schema.ManyToMany {
		return pivotTarget{}, newError(InvalidOperation, string(op), string(rel.Kind))
	}
	return pivotTarget{
		target:       target,
		table:        rel.Pivots[0].JoinTable,
		originColumn: rel.Pivots[0].JoinKey,
		targetColumn: rel.Pivots[1].Key,
	}, nil
}

func (a *Accessor) insert(ctx context.Context, p pivotTarget, keys []any) error {
	if len(keys) == 0 {
		return nil
	}

	ins := sq.Insert(sqlutil.QuoteIdentifier(p.table)).
		Columns(sqlutil.QuoteIdentifier(p.originColumn), sqlutil.QuoteIdentifier(p.targetColumn))
	for _, key := range keys {
		ins = ins.Values(a.ID(), key)
	}

	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build pivot insert: %w", err)
	}
	if _, err := a.engine.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add %s to %s %v: %w", p.target, a.table, a.ID(), err)
	}
	return nil
}

// invalidate drops the cached relation so the next Get re-fetches.
func (a *Accessor) invalidate(target string) {
	a.row.Delete(a.engine.schema.FieldName(target, false))
	a.row.Delete(a.engine.schema.FieldName(target, true))
}

func nilIfEmpty(v any) any {
	switch rows := v.(type) {
	case nil:
		return nil
	case *types.Row:
		if rows == nil {
			return nil
		}
	case []*types.Row:
		if len(rows) == 0 {
			return nil
		}
	}
	return v
}
