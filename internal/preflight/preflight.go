// Package preflight checks a schema graph against the live database before the
// relation engine is pointed at it.
package preflight

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/schema"
)

// Check names reported in Error.
const (
	CheckTableExistence  = "TABLE_EXISTENCE_CHECK"
	CheckColumnExistence = "COLUMN_EXISTENCE_CHECK"
)

// Error represents a preflight check failure.
type Error struct {
	Check   string
	Message string
	Tables  []string
}

func (e *Error) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// Queryer is the subset of *sql.DB the checks need.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Checker verifies that every table and column a schema joins on exists.
type Checker struct {
	db       Queryer
	database string
	schema   *schema.Schema
	logger   *logger.Logger
	extra    map[string][]string
}

// NewChecker creates a new preflight checker.
func NewChecker(db Queryer, database string, s *schema.Schema, log *logger.Logger) (*Checker, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if s == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{
		db:       db,
		database: database,
		schema:   s,
		logger:   log,
		extra:    make(map[string][]string),
	}, nil
}

// RequireColumns adds columns outside the relationship graph, such as a
// model's soft delete field, to the column check.
func (c *Checker) RequireColumns(table string, columns ...string) {
	c.extra[table] = append(c.extra[table], columns...)
}

// RunAll runs the table and column checks and returns the key columns that
// have no index. Missing indexes are only logged.
func (c *Checker) RunAll(ctx context.Context) ([]string, error) {
	c.logger.Info("Running preflight checks...")

	required := c.requiredColumns()
	tables := sortedKeys(required)

	if err := c.ValidateTablesExist(ctx, tables); err != nil {
		return nil, err
	}
	if err := c.ValidateColumnsExist(ctx, required); err != nil {
		return nil, err
	}
	unindexed, err := c.UnindexedKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(unindexed) > 0 {
		c.logger.Warnw("join columns without an index", "columns", unindexed)
	}

	c.logger.Info("All preflight checks PASSED")
	return unindexed, nil
}

// ValidateTablesExist checks that all tables exist in the database.
func (c *Checker) ValidateTablesExist(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	c.logger.Debug("Checking table existence...")

	q := sq.Select("TABLE_NAME").
		From("information_schema.TABLES").
		Where(sq.Eq{"TABLE_SCHEMA": c.database, "TABLE_NAME": tables})

	existing := make(map[string]bool)
	err := c.scan(ctx, q, func(rs *sql.Rows) error {
		var name string
		if err := rs.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}

	var missing []string
	for _, t := range tables {
		if !existing[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &Error{
			Check:   CheckTableExistence,
			Message: "Tables not found in database",
			Tables:  missing,
		}
	}

	c.logger.Debugf("Table existence check PASSED (%d tables)", len(tables))
	return nil
}

// ValidateColumnsExist checks that every required table.column exists.
func (c *Checker) ValidateColumnsExist(ctx context.Context, required map[string][]string) error {
	if len(required) == 0 {
		return nil
	}
	c.logger.Debug("Checking column existence...")

	existing, err := c.columnSet(ctx, "information_schema.COLUMNS", sortedKeys(required))
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}

	var missing []string
	for _, table := range sortedKeys(required) {
		for _, col := range required[table] {
			if !existing[table+"."+col] {
				missing = append(missing, table+"."+col)
			}
		}
	}
	if len(missing) > 0 {
		return &Error{
			Check:   CheckColumnExistence,
			Message: "Columns used by relationships not found",
			Tables:  missing,
		}
	}

	c.logger.Debugf("Column existence check PASSED (%d tables)", len(required))
	return nil
}

// UnindexedKeys returns the join columns, other than primary keys, that no
// index covers.
func (c *Checker) UnindexedKeys(ctx context.Context) ([]string, error) {
	keys := c.joinColumns()
	if len(keys) == 0 {
		return nil, nil
	}

	indexed, err := c.columnSet(ctx, "information_schema.STATISTICS", sortedKeys(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var out []string
	for _, table := range sortedKeys(keys) {
		for _, col := range keys[table] {
			if !indexed[table+"."+col] {
				out = append(out, table+"."+col)
			}
		}
	}
	return out, nil
}

// columnSet loads TABLE_NAME.COLUMN_NAME pairs from an information_schema view.
func (c *Checker) columnSet(ctx context.Context, from string, tables []string) (map[string]bool, error) {
	q := sq.Select("TABLE_NAME", "COLUMN_NAME").
		From(from).
		Where(sq.Eq{"TABLE_SCHEMA": c.database, "TABLE_NAME": tables})

	set := make(map[string]bool)
	err := c.scan(ctx, q, func(rs *sql.Rows) error {
		var table, col string
		if err := rs.Scan(&table, &col); err != nil {
			return err
		}
		set[table+"."+col] = true
		return nil
	})
	return set, err
}

func (c *Checker) scan(ctx context.Context, q sq.SelectBuilder, fn func(*sql.Rows) error) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	rs, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rs.Close()

	for rs.Next() {
		if err := fn(rs); err != nil {
			return err
		}
	}
	return rs.Err()
}

// requiredColumns collects primary keys, every pivot column and the extras.
func (c *Checker) requiredColumns() map[string][]string {
	cols := newColumnIndex()
	for _, name := range c.schema.Tables() {
		t, _ := c.schema.Table(name)
		cols.add(name, t.PrimaryKey)
		for _, target := range t.RelationNames() {
			for _, p := range t.Relations[target].Pivots {
				cols.add(p.Table, p.Key)
				cols.add(p.JoinTable, p.JoinKey)
			}
		}
	}
	for table, extra := range c.extra {
		for _, col := range extra {
			cols.add(table, col)
		}
	}
	return cols.m
}

// joinColumns collects pivot columns that are not the primary key of their table.
func (c *Checker) joinColumns() map[string][]string {
	cols := newColumnIndex()
	isPK := func(table, col string) bool {
		t, ok := c.schema.Table(table)
		return ok && t.PrimaryKey == col
	}
	for _, name := range c.schema.Tables() {
		t, _ := c.schema.Table(name)
		for _, target := range t.RelationNames() {
			for _, p := range t.Relations[target].Pivots {
				if !isPK(p.Table, p.Key) {
					cols.add(p.Table, p.Key)
				}
				if !isPK(p.JoinTable, p.JoinKey) {
					cols.add(p.JoinTable, p.JoinKey)
				}
			}
		}
	}
	return cols.m
}

// columnIndex is an insertion-ordered, deduplicated table -> columns map.
type columnIndex struct {
	m    map[string][]string
	seen map[string]bool
}

func newColumnIndex() *columnIndex {
	return &columnIndex{m: make(map[string][]string), seen: make(map[string]bool)}
}

func (ci *columnIndex) add(table, col string) {
	if table == "" || col == "" || ci.seen[table+"."+col] {
		return
	}
	ci.seen[table+"."+col] = true
	ci.m[table] = append(ci.m[table], col)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
