package relations

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/gorelations/internal/types"
)

// Attach resolves the selected relationships of table for rows and stores
// the related rows on each row: under the table name for non-singleton
// relationships and under the singular name for singletons. One query is
// issued per relationship regardless of len(rows).
//
// The result is keyed by primary key when sel.Reindex is set, no manual join
// was used and every key is present and unique; otherwise it is the input
// sequence.
func (e *Engine) Attach(ctx context.Context, table string, rows []*types.Row, sel Selection, trail Trail) (*types.Result, error) {
	if len(rows) == 0 || (len(rows) == 1 && rows[0] == nil) {
		return types.NewResult(rows), nil
	}
	if err := ValidateWithout(sel.Without); err != nil {
		return nil, err
	}

	start := time.Now()
	log := e.log.WithTable(table).WithDepth(trail.Depth)

	originTable, ok := e.schema.Table(table)
	if !ok {
		err := newError(UnknownTable, table)
		if !e.settings.Silent {
			return nil, err
		}
		log.Warnf("relation lookup failed, returning rows unchanged: %v", err)
		return types.NewResult(rows), nil
	}
	pk := originTable.PrimaryKey

	names := sel.effective(trail, e.tableName)
	var stats types.LoadStats

	if len(names) > 0 {
		keys := make([]any, 0, len(rows))
		for _, row := range rows {
			if row == nil {
				continue
			}
			v, ok := row.Get(pk)
			if !ok {
				return nil, newError(MissingProperty, table, pk)
			}
			keys = append(keys, v)
		}
		keys = types.UniqueKeys(keys)

		withDeleted := make(map[string]bool, len(sel.WithDeleted))
		for _, name := range sel.WithDeleted {
			withDeleted[e.tableName(name)] = true
		}

		// Exclusions of this call travel to the nested loaders.
		without := make([]string, 0, len(sel.Without))
		for _, name := range sel.Without {
			without = append(without, e.tableName(name))
		}

		sets, err := e.resolveAll(ctx, table, names, keys, trail, without, withDeleted)
		if err != nil {
			return nil, err
		}

		for _, set := range sets {
			stats.Relations++
			stats.Queries += set.queries
			field := e.schema.FieldName(set.Table, set.Singleton)
			for _, row := range rows {
				if row == nil {
					continue
				}
				value := set.Value(row.Value(pk))
				row.Set(field, value)
				switch v := value.(type) {
				case *types.Row:
					stats.Related++
				case []*types.Row:
					stats.Related += int64(len(v))
				}
			}
		}
	}

	var result *types.Result
	if sel.Reindex && !sel.Joined {
		result = types.Reindex(rows, pk)
	} else {
		result = types.NewResult(rows)
	}
	if sel.Reindex && !result.Reindexed() && !sel.Joined {
		log.Debugf("reindex on %s skipped: missing or duplicate keys", pk)
	}

	stats.Duration = time.Since(start)
	result.Stats = stats
	log.Debugw("attached relations",
		"relations", names,
		"rows", len(rows),
		"queries", stats.Queries,
		"duration", stats.Duration)
	return result, nil
}

// resolveAll resolves every relationship, concurrently when enabled. Sets
// come back in the order of names; merging stays with the caller.
func (e *Engine) resolveAll(ctx context.Context, table string, names []string, keys []any, trail Trail, without []string, withDeleted map[string]bool) ([]*ResolvedSet, error) {
	sets := make([]*ResolvedSet, len(names))

	if !e.settings.Parallel || len(names) < 2 {
		for i, target := range names {
			set, err := e.resolve(ctx, table, target, keys, trail, without, withDeleted[target])
			if err != nil {
				return nil, err
			}
			sets[i] = set
		}
		return sets, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range names {
		g.Go(func() error {
			set, err := e.resolve(gctx, table, target, keys, trail, without, withDeleted[target])
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}
