package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/database"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/model"
	"github.com/dbsmedya/gorelations/internal/relations"
	"github.com/dbsmedya/gorelations/internal/schema"
)

// environment is everything a command needs to talk to the engine.
type environment struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.Manager
	schema *schema.Schema
	engine *relations.Engine
	models map[string]*model.Model
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.Silent, o.NoNesting, o.MaxDepth)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func inflectorFor(cfg *config.SchemaConfig) schema.Inflector {
	return schema.Inflector{
		PluralOverrides:   cfg.PluralOverrides,
		SingularOverrides: cfg.SingularOverrides,
	}
}

// loadSchema builds the schema graph from the configured source. db is only
// used, and then required, when the source is "database".
func loadSchema(ctx context.Context, cfg *config.Config, db *sql.DB, log *logger.Logger) (*schema.Schema, error) {
	switch cfg.Schema.Source {
	case "", "config":
		return schema.FromConfig(&cfg.Schema)
	case "cache":
		return schema.Load(cfg.Schema.CachePath, inflectorFor(&cfg.Schema))
	case "database":
		if db == nil {
			return nil, fmt.Errorf("schema source %q needs a database connection", cfg.Schema.Source)
		}
		return schema.Introspect(ctx, db, cfg.Database.Database, inflectorFor(&cfg.Schema), log)
	default:
		return nil, fmt.Errorf("unknown schema source %q", cfg.Schema.Source)
	}
}

// openEnvironment connects to the database and wires schema, engine and models.
func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return nil, err
	}

	env, err := newEnvironment(ctx, cfg, log, dbManager)
	if err != nil {
		_ = dbManager.Close()
		return nil, err
	}
	return env, nil
}

// newEnvironment wires an environment around an open connection.
func newEnvironment(ctx context.Context, cfg *config.Config, log *logger.Logger, dbManager *database.Manager) (*environment, error) {
	s, err := loadSchema(ctx, cfg, dbManager.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	engine, err := relations.NewEngine(s, dbManager.DB, relations.SettingsFromConfig(&cfg.Relations), log)
	if err != nil {
		return nil, err
	}

	models, err := model.LoadAll(engine, cfg)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		log:    log,
		db:     dbManager,
		schema: s,
		engine: engine,
		models: models,
	}, nil
}

// Model returns the configured model for table, or a plain one with the
// schema primary key when the table has no models entry.
func (e *environment) Model(table string) (*model.Model, error) {
	name, ok := e.schema.ResolveName(table)
	if !ok {
		return nil, fmt.Errorf("table %q is not in the schema", table)
	}
	if m, ok := e.models[name]; ok {
		return m, nil
	}
	t, _ := e.schema.Table(name)
	m, err := model.New(e.engine, model.Options{Table: name, PrimaryKey: t.PrimaryKey})
	if err != nil {
		return nil, err
	}
	e.models[name] = m
	return m, nil
}

// Close releases the database connection and flushes the logger.
func (e *environment) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}
