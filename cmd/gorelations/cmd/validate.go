package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/database"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/preflight"
	"github.com/dbsmedya/gorelations/internal/schema"
)

var skipDB bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, schema and database",
	Long: `Validate checks the configuration file, builds the relationship schema
and runs preflight checks against the database.

Checks performed:
  - Configuration syntax and required fields
  - Relationship pivot chains
  - Relationship cycles of three or more tables (warning)
  - Database connectivity
  - Existence of every table and join column
  - Indexes on join columns (warning)

Example:
  gorelations validate --config relations.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&skipDB, "skip-db", false,
		"Only check configuration and schema, do not connect")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := database.WithShutdown(context.Background(), nil)
	defer stop()

	fmt.Fprintln(outputWriter)
	printHeader("Validation: %s", GetConfigFile())

	ok := validateConfig(cfg)

	var s *schema.Schema
	if cfg.Schema.Source != "database" {
		if s = validateSchema(ctx, cfg, nil, log); s == nil {
			ok = false
		}
	}

	if !skipDB {
		if !validateDatabase(ctx, cfg, s, log) {
			ok = false
		}
	}

	fmt.Fprintln(outputWriter)
	if !ok {
		return fmt.Errorf("validation failed")
	}
	printOK("All checks passed")
	return nil
}

// validateConfig prints every configuration error.
func validateConfig(cfg *config.Config) bool {
	fmt.Fprintln(outputWriter)
	printSection("Configuration")

	err := cfg.Validate()
	if err == nil {
		printOK("Configuration is valid (%d tables, %d models)", len(cfg.Schema.Tables), len(cfg.Models))
		return true
	}

	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			printFail("%s", e.Error())
		}
	} else {
		printFail("%v", err)
	}
	return false
}

// validateSchema loads the schema and reports its size and cycles. It returns
// nil when the schema cannot be built.
func validateSchema(ctx context.Context, cfg *config.Config, db schema.Queryer, log *logger.Logger) *schema.Schema {
	fmt.Fprintln(outputWriter)
	printSection("Schema")

	var s *schema.Schema
	var err error
	if cfg.Schema.Source == "database" {
		if db == nil {
			printFail("schema source database needs a connection")
			return nil
		}
		s, err = schema.Introspect(ctx, db, cfg.Database.Database, inflectorFor(&cfg.Schema), log)
	} else {
		s, err = loadSchema(ctx, cfg, nil, log)
	}
	if err != nil {
		printFail("Schema build failed: %v", err)
		return nil
	}

	printOK("Schema loaded from %s: %d tables, %d relationships",
		sourceName(cfg), s.TableCount(), s.RelationshipCount())
	for _, c := range s.Cycles() {
		printWarn("Relationship cycle: %s", c.String())
	}
	return s
}

// validateDatabase connects and runs the preflight checks.
func validateDatabase(ctx context.Context, cfg *config.Config, s *schema.Schema, log *logger.Logger) bool {
	fmt.Fprintln(outputWriter)
	printSection("Database")

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		printFail("%v", err)
		return false
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.Ping(ctx); err != nil {
		printFail("Database connection failed: %v", err)
		return false
	}
	printOK("Connected to %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	if s == nil {
		if cfg.Schema.Source != "database" {
			return false
		}
		if s = validateSchema(ctx, cfg, dbManager.DB, log); s == nil {
			return false
		}
	}

	return runPreflight(ctx, cfg, dbManager.DB, s, log)
}

// runPreflight checks tables and join columns, including soft delete fields
// of configured models.
func runPreflight(ctx context.Context, cfg *config.Config, db preflight.Queryer, s *schema.Schema, log *logger.Logger) bool {
	checker, err := preflight.NewChecker(db, cfg.Database.Database, s, log)
	if err != nil {
		printFail("Failed to create preflight checker: %v", err)
		return false
	}
	for _, table := range cfg.ListModels() {
		if mc, _ := cfg.GetModel(table); mc.SoftDeletes {
			checker.RequireColumns(table, mc.DeletedField)
		}
	}

	unindexed, err := checker.RunAll(ctx)
	if err != nil {
		printFail("Preflight checks failed: %v", err)
		return false
	}
	for _, col := range unindexed {
		printWarn("Join column %s has no index", col)
	}
	printOK("All tables and join columns exist")
	return true
}

func sourceName(cfg *config.Config) string {
	switch cfg.Schema.Source {
	case "cache":
		return "cache " + cfg.Schema.CachePath
	case "database":
		return "database " + cfg.Database.Database
	default:
		return "config"
	}
}
