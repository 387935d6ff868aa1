package relations

import (
	"context"
	"fmt"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/gorelations/internal/types"
)

// ResolvedSet maps origin keys to related rows.
type ResolvedSet struct {
	// Table is the target table.
	Table string
	// Singleton sets hold at most one row per origin key.
	Singleton bool

	groups  *orderedmap.OrderedMap[string, []*types.Row]
	queries int
}

func newResolvedSet(table string, singleton bool) *ResolvedSet {
	return &ResolvedSet{
		Table:     table,
		Singleton: singleton,
		groups:    orderedmap.NewOrderedMap[string, []*types.Row](),
	}
}

func (s *ResolvedSet) add(key string, row *types.Row) {
	if s.Singleton {
		// Last one wins.
		s.groups.Set(key, []*types.Row{row})
		return
	}
	rows, _ := s.groups.Get(key)
	s.groups.Set(key, append(rows, row))
}

// Rows returns the rows related to an origin key.
func (s *ResolvedSet) Rows(key any) []*types.Row {
	rows, _ := s.groups.Get(types.KeyOf(key))
	return rows
}

// Value returns what is attached to a row with the given key: *types.Row or
// nil for singleton sets, a non-nil []*types.Row otherwise.
func (s *ResolvedSet) Value(key any) any {
	rows := s.Rows(key)
	if s.Singleton {
		if len(rows) == 0 {
			return nil
		}
		return rows[0]
	}
	if rows == nil {
		return []*types.Row{}
	}
	return rows
}

// Keys returns the origin keys that matched, in first-seen order.
func (s *ResolvedSet) Keys() []string {
	return s.groups.Keys()
}

// Len returns the number of matched origin keys.
func (s *ResolvedSet) Len() int {
	return s.groups.Len()
}

// Queries returns the number of queries issued to build the set.
func (s *ResolvedSet) Queries() int {
	return s.queries
}

// Resolve fetches the rows of target related to the given origin keys with
// one query. Lookup failures return an empty set in silent mode.
func (e *Engine) Resolve(ctx context.Context, origin, target string, keys []any) (*ResolvedSet, error) {
	return e.resolve(ctx, origin, e.tableName(target), keys, Trail{}, nil, false)
}

// resolve returns an empty set without error when silent mode suppressed a
// lookup failure. The set keeps the relationship's cardinality when the
// relationship itself is known.
func (e *Engine) resolve(ctx context.Context, origin, target string, keys []any, trail Trail, without []string, withDeleted bool) (*ResolvedSet, error) {
	log := e.log.WithRelation(origin, target).WithDepth(trail.Depth)

	originTable, rel, err := e.relationship(origin, target)
	if err != nil {
		if e.settings.Silent && isLookupError(err) {
			log.Warnf("relation lookup failed, returning empty result: %v", err)
			singleton := false
			if rel, ok := e.schema.Relationship(origin, target); ok {
				singleton = rel.Singleton
			}
			return newResolvedSet(target, singleton), nil
		}
		return nil, err
	}

	set := newResolvedSet(target, rel.Singleton)
	keys = types.UniqueKeys(keys)
	if len(keys) == 0 {
		return set, nil
	}

	q, err := BuildQuery(origin, originTable.PrimaryKey, rel, keys)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fetcher := e.Fetcher(target)
	rows, err := fetcher.FetchRelated(ctx, Request{
		Origin:      origin,
		Query:       q,
		Trail:       trail.Next(target, without, e.settings),
		WithDeleted: withDeleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s -> %s: %w", origin, target, err)
	}
	set.queries = 1

	for _, row := range rows {
		key := types.KeyOf(row.Value(OriginatingColumn))
		row.Delete(OriginatingColumn)
		set.add(key, row)
	}

	log.Debugw("resolved relationship",
		"kind", rel.Kind,
		"keys", len(keys),
		"rows", len(rows),
		"duration", time.Since(start))
	return set, nil
}
