// Package model provides relation-aware finders over one table.
package model

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/relations"
	"github.com/dbsmedya/gorelations/internal/sqlutil"
	"github.com/dbsmedya/gorelations/internal/types"
)

// Options configures a Model.
type Options struct {
	Table        string
	PrimaryKey   string
	Shape        types.Shape
	SoftDeletes  bool
	DeletedField string
	// With lists the relations loaded by default.
	With []string
	// Without lists relations never loaded by default.
	Without []string
}

// Model fetches rows of one table and loads their relations. Per-call state
// lives in Query values, so a Model can be shared between goroutines.
type Model struct {
	engine       *relations.Engine
	db           relations.DBTX
	table        string
	primaryKey   string
	shape        types.Shape
	softDeletes  bool
	deletedField string
	with         []string
	without      []string
	log          *logger.Logger
}

// New creates a model and registers it with the engine so relationships
// targeting its table go through its soft-delete filter and default
// relations.
func New(engine *relations.Engine, opts Options) (*Model, error) {
	if engine == nil {
		return nil, fmt.Errorf("model %s: engine is nil", opts.Table)
	}
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = "id"
	}
	if opts.Shape == "" {
		opts.Shape = engine.Settings().DefaultShape
	}
	if opts.SoftDeletes && opts.DeletedField == "" {
		opts.DeletedField = "deleted_at"
	}
	if err := sqlutil.ValidateIdentifiers(opts.Table, opts.PrimaryKey); err != nil {
		return nil, fmt.Errorf("model %s: %w", opts.Table, err)
	}
	if opts.SoftDeletes {
		if err := sqlutil.ValidateIdentifiers(opts.DeletedField); err != nil {
			return nil, fmt.Errorf("model %s: %w", opts.Table, err)
		}
	}
	if err := relations.ValidateWithout(opts.Without); err != nil {
		return nil, err
	}

	m := &Model{
		engine:       engine,
		db:           engine.DB(),
		table:        opts.Table,
		primaryKey:   opts.PrimaryKey,
		shape:        opts.Shape,
		softDeletes:  opts.SoftDeletes,
		deletedField: opts.DeletedField,
		with:         append([]string(nil), opts.With...),
		without:      append([]string(nil), opts.Without...),
		log:          engine.Logger().WithTable(opts.Table),
	}
	if err := engine.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromConfig creates a model from a models entry of the configuration.
func FromConfig(engine *relations.Engine, table string, cfg config.ModelConfig) (*Model, error) {
	shape, ok := types.ParseShape(cfg.ReturnShape)
	if !ok {
		return nil, fmt.Errorf("model %s: invalid return shape %q", table, cfg.ReturnShape)
	}
	return New(engine, Options{
		Table:        table,
		PrimaryKey:   cfg.PrimaryKey,
		Shape:        shape,
		SoftDeletes:  cfg.SoftDeletes,
		DeletedField: cfg.DeletedField,
		With:         cfg.With,
		Without:      cfg.Without,
	})
}

// LoadAll creates a model for every models entry of cfg.
func LoadAll(engine *relations.Engine, cfg *config.Config) (map[string]*Model, error) {
	models := make(map[string]*Model, len(cfg.Models))
	for _, table := range cfg.ListModels() {
		mc, _ := cfg.GetModel(table)
		m, err := FromConfig(engine, table, mc)
		if err != nil {
			return nil, err
		}
		models[table] = m
	}
	return models, nil
}

func (m *Model) Table() string      { return m.table }
func (m *Model) PrimaryKey() string { return m.primaryKey }
func (m *Model) Shape() types.Shape { return m.shape }

// DefaultWith returns the relations loaded when a query does not say otherwise.
func (m *Model) DefaultWith() []string {
	return append([]string(nil), m.with...)
}

// FetchRelated runs a related-row query for the engine, applying the
// soft-delete filter and loading this model's own default relations within
// the limits of the request trail.
func (m *Model) FetchRelated(ctx context.Context, req relations.Request) ([]*types.Row, error) {
	q := req.Query
	if m.softDeletes && !req.WithDeleted {
		q = q.Where(sq.Eq{sqlutil.Qualify(m.table, m.deletedField): nil})
	}

	rows, err := relations.QueryRows(ctx, m.db, q, m.shape)
	if err != nil {
		return nil, err
	}
	if req.Trail.Disabled || len(rows) == 0 || len(m.with) == 0 {
		return rows, nil
	}

	sel := relations.Selection{With: m.with, Without: m.without}
	if _, err := m.engine.Attach(ctx, m.table, rows, sel, req.Trail); err != nil {
		return nil, fmt.Errorf("nested relations of %s: %w", m.table, err)
	}
	return rows, nil
}

// Accessor returns the relation accessor for a row of this model.
func (m *Model) Accessor(row *types.Row) (*relations.Accessor, error) {
	return m.engine.Accessor(m.table, row)
}

// Query starts a query with the model defaults.
func (m *Model) Query() Query {
	return Query{
		model:   m,
		with:    m.with,
		without: m.without,
		reindex: true,
	}
}

// With starts a query that also loads tables.
func (m *Model) With(tables ...string) Query { return m.Query().With(tables...) }

// WithOnly starts a query that loads exactly tables instead of the defaults.
func (m *Model) WithOnly(tables ...string) Query { return m.Query().WithOnly(tables...) }

// WithDeletedRelations starts a query that keeps soft-deleted rows of tables.
func (m *Model) WithDeletedRelations(tables ...string) Query {
	return m.Query().WithDeletedRelations(tables...)
}

// WithNone starts a query that loads no relations.
func (m *Model) WithNone() Query { return m.Query().WithNone() }

// Without starts a query that skips tables.
func (m *Model) Without(tables ...string) Query { return m.Query().Without(tables...) }

// Find returns the row with the given primary key, or nil.
func (m *Model) Find(ctx context.Context, id any) (*types.Row, error) {
	return m.Query().Find(ctx, id)
}

// FindMany returns the rows with the given primary keys.
func (m *Model) FindMany(ctx context.Context, ids []any) (*types.Result, error) {
	return m.Query().FindMany(ctx, ids)
}

// FindAll returns every row.
func (m *Model) FindAll(ctx context.Context) (*types.Result, error) {
	return m.Query().FindAll(ctx)
}

// First returns the first row, or nil.
func (m *Model) First(ctx context.Context) (*types.Row, error) {
	return m.Query().First(ctx)
}
