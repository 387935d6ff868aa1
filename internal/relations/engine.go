// Package relations resolves schema relationships for batches of rows and
// attaches the related rows to them.
package relations

import (
	"sync"

	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/schema"
)

// Provider is the read-only schema graph the engine resolves against.
// *schema.Schema implements it.
type Provider interface {
	Table(name string) (*schema.Table, bool)
	Relationship(from, to string) (*schema.Relationship, bool)
	ResolveName(name string) (string, bool)
	FieldName(target string, singleton bool) string
}

// Engine resolves and attaches relations. It is safe for concurrent use once
// all fetchers are registered.
type Engine struct {
	schema   Provider
	db       DBTX
	settings Settings
	log      *logger.Logger

	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewEngine creates an engine over a schema and a database handle.
func NewEngine(provider Provider, db DBTX, settings Settings, log *logger.Logger) (*Engine, error) {
	if provider == nil {
		return nil, newError(NoSchemaAvailable)
	}
	if s, ok := provider.(*schema.Schema); ok && s == nil {
		return nil, newError(NoSchemaAvailable)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if settings.DefaultShape == "" {
		settings.DefaultShape = DefaultSettings().DefaultShape
	}

	return &Engine{
		schema:   provider,
		db:       db,
		settings: settings,
		log:      log,
		fetchers: make(map[string]Fetcher),
	}, nil
}

// Register binds a fetcher to its table. The table must be in the schema.
func (e *Engine) Register(f Fetcher) error {
	table, ok := e.schema.Table(f.Table())
	if !ok {
		return newError(NotRelatable, f.Table())
	}
	if f.PrimaryKey() == "" {
		return newError(MissingProperty, table.Name, "primary key")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchers[table.Name] = f
	return nil
}

// Fetcher returns the fetcher bound to table, or a generic one.
func (e *Engine) Fetcher(table string) Fetcher {
	e.mu.RLock()
	f, ok := e.fetchers[table]
	e.mu.RUnlock()
	if ok {
		return f
	}

	pk := "id"
	if t, ok := e.schema.Table(table); ok && t.PrimaryKey != "" {
		pk = t.PrimaryKey
	}
	return NewTableFetcher(e.db, table, pk, e.settings.DefaultShape)
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Schema returns the schema provider.
func (e *Engine) Schema() Provider {
	return e.schema
}

// DB returns the database handle.
func (e *Engine) DB() DBTX {
	return e.db
}

// Logger returns the engine logger.
func (e *Engine) Logger() *logger.Logger {
	return e.log
}

// tableName maps an alias to its table name, or returns name unchanged.
func (e *Engine) tableName(name string) string {
	if table, ok := e.schema.ResolveName(name); ok {
		return table
	}
	return name
}

// relationship looks up origin -> target.
func (e *Engine) relationship(origin, target string) (*schema.Table, *schema.Relationship, error) {
	originTable, ok := e.schema.Table(origin)
	if !ok {
		return nil, nil, newError(UnknownTable, origin)
	}
	if _, ok := e.schema.Table(target); !ok {
		return nil, nil, newError(UnknownTable, target)
	}
	rel, ok := e.schema.Relationship(origin, target)
	if !ok {
		return nil, nil, newError(UnknownRelation, origin, target)
	}
	if len(rel.Pivots) == 0 {
		return nil, nil, newError(MissingPivots, origin, target)
	}
	return originTable, rel, nil
}
