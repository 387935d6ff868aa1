package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/logger"
)

// Queryer is the subset of *sql.DB introspection needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// foreignKey is one single-column FK constraint.
type foreignKey struct {
	Constraint       string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// tableMeta is what introspection learns about one table.
type tableMeta struct {
	Name        string
	PrimaryKey  string
	Columns     []string
	ForeignKeys []foreignKey
}

// Columns that may sit on a pivot table besides its two foreign keys.
var pivotExtraColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
}

// Introspect reads tables, primary keys and foreign keys from
// information_schema and derives the relationship graph:
//   - every foreign key yields belongsTo on the child and hasMany on the parent
//   - a table whose only columns are two foreign keys to different tables (plus
//     id and timestamps) is a pivot and yields manyToMany in both directions
func Introspect(ctx context.Context, db Queryer, database string, inf Inflector, log *logger.Logger) (*Schema, error) {
	if log == nil {
		log = logger.NewNop()
	}

	tableNames, err := getTables(ctx, db, database)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	metas := make(map[string]*tableMeta, len(tableNames))
	for _, name := range tableNames {
		meta := &tableMeta{Name: name}

		pks, err := getPrimaryKeys(ctx, db, database, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get primary keys for table %s: %w", name, err)
		}
		if len(pks) > 0 {
			meta.PrimaryKey = pks[0]
		}
		if len(pks) > 1 {
			log.WithTable(name).Debugf("composite primary key %v, using %s", pks, pks[0])
		}

		if meta.Columns, err = getColumns(ctx, db, database, name); err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", name, err)
		}
		if meta.ForeignKeys, err = getForeignKeys(ctx, db, database, name); err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", name, err)
		}
		metas[name] = meta
	}

	b := NewBuilder(inf)
	for _, name := range tableNames {
		if err := b.AddTable(name, metas[name].PrimaryKey); err != nil {
			return nil, err
		}
	}

	for _, name := range tableNames {
		meta := metas[name]
		for _, fk := range meta.ForeignKeys {
			if _, known := metas[fk.ReferencedTable]; !known {
				continue
			}
			if fk.ReferencedTable == name {
				log.WithTable(name).Warnf("skipping self-referencing foreign key %s", fk.Constraint)
				continue
			}

			if err := addUnique(b, log, name, Relationship{
				Table:  fk.ReferencedTable,
				Kind:   BelongsTo,
				Pivots: []Pivot{{Table: name, Key: fk.Column, JoinTable: fk.ReferencedTable, JoinKey: fk.ReferencedColumn}},
			}); err != nil {
				return nil, err
			}

			if isPivotTable(meta, metas) {
				continue
			}
			if err := addUnique(b, log, fk.ReferencedTable, Relationship{
				Table:  name,
				Kind:   HasMany,
				Pivots: []Pivot{{Table: fk.ReferencedTable, Key: fk.ReferencedColumn, JoinTable: name, JoinKey: fk.Column}},
			}); err != nil {
				return nil, err
			}
		}

		if !isPivotTable(meta, metas) {
			continue
		}
		left, right := meta.ForeignKeys[0], meta.ForeignKeys[1]
		for _, pair := range [][2]foreignKey{{left, right}, {right, left}} {
			from, to := pair[0], pair[1]
			if err := addUnique(b, log, from.ReferencedTable, Relationship{
				Table: to.ReferencedTable,
				Kind:  ManyToMany,
				Pivots: []Pivot{
					{Table: from.ReferencedTable, Key: from.ReferencedColumn, JoinTable: name, JoinKey: from.Column},
					{Table: name, Key: to.Column, JoinTable: to.ReferencedTable, JoinKey: to.ReferencedColumn},
				},
			}); err != nil {
				return nil, err
			}
		}
	}

	return b.Build()
}

// addUnique adds a relationship unless one to the same target already exists.
func addUnique(b *Builder, log *logger.Logger, from string, rel Relationship) error {
	if existing, ok := b.schema.tables[from].Relations[rel.Table]; ok {
		log.WithRelation(from, rel.Table).Warnf("keeping %s relationship, ignoring %s", existing.Kind, rel.Kind)
		return nil
	}
	return b.AddRelationship(from, rel)
}

// isPivotTable reports whether a table only links two other tables.
func isPivotTable(meta *tableMeta, metas map[string]*tableMeta) bool {
	if len(meta.ForeignKeys) != 2 {
		return false
	}
	left, right := meta.ForeignKeys[0], meta.ForeignKeys[1]
	if left.ReferencedTable == right.ReferencedTable {
		return false
	}
	if metas[left.ReferencedTable] == nil || metas[right.ReferencedTable] == nil {
		return false
	}
	for _, col := range meta.Columns {
		if col == left.Column || col == right.Column {
			continue
		}
		if !pivotExtraColumns[col] {
			return false
		}
	}
	return true
}

// schemaTable restricts an information_schema select to one table.
func schemaTable(b sq.SelectBuilder, database, table string) sq.SelectBuilder {
	return b.Where(sq.Eq{"TABLE_SCHEMA": database}).Where(sq.Eq{"TABLE_NAME": table})
}

func getTables(ctx context.Context, db Queryer, database string) ([]string, error) {
	q := sq.Select("TABLE_NAME").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_SCHEMA": database}).
		Where("TABLE_TYPE = 'BASE TABLE'").
		OrderBy("TABLE_NAME")
	return queryStrings(ctx, db, q)
}

func getPrimaryKeys(ctx context.Context, db Queryer, database, table string) ([]string, error) {
	q := schemaTable(sq.Select("COLUMN_NAME").From("INFORMATION_SCHEMA.KEY_COLUMN_USAGE"), database, table).
		Where("CONSTRAINT_NAME = 'PRIMARY'").
		OrderBy("ORDINAL_POSITION")
	return queryStrings(ctx, db, q)
}

func getColumns(ctx context.Context, db Queryer, database, table string) ([]string, error) {
	q := schemaTable(sq.Select("COLUMN_NAME").From("INFORMATION_SCHEMA.COLUMNS"), database, table).
		OrderBy("ORDINAL_POSITION")
	return queryStrings(ctx, db, q)
}

// getForeignKeys returns single-column foreign keys. Composite constraints
// cannot be expressed as one pivot step and are skipped.
func getForeignKeys(ctx context.Context, db Queryer, database, table string) ([]foreignKey, error) {
	q := schemaTable(
		sq.Select("CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME").
			From("INFORMATION_SCHEMA.KEY_COLUMN_USAGE"),
		database, table).
		Where(sq.NotEq{"REFERENCED_TABLE_NAME": nil}).
		OrderBy("CONSTRAINT_NAME", "ORDINAL_POSITION")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var all []foreignKey
	counts := make(map[string]int)
	for rows.Next() {
		var fk foreignKey
		if err := rows.Scan(&fk.Constraint, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		all = append(all, fk)
		counts[fk.Constraint]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []foreignKey
	for _, fk := range all {
		if counts[fk.Constraint] == 1 {
			out = append(out, fk)
		}
	}
	// Stable order by referenced table keeps pivot direction deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReferencedTable < out[j].ReferencedTable
	})
	return out, nil
}

func queryStrings(ctx context.Context, db Queryer, q sq.SelectBuilder) ([]string, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
