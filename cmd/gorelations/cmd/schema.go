package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/database"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/schema"
)

var (
	exportOutput string
	exportFrom   string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the relationship schema",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the relationship schema to a cache file",
	Long: `Export builds the relationship schema and writes it as YAML. By default the
schema is introspected from information_schema and written to
schema.cache_path, so later runs can use schema.source: cache without
querying information_schema again.

Use --output - to print the schema instead of writing a file.

Examples:
  gorelations schema export
  gorelations schema export --from config --output -`,
	RunE: runSchemaExport,
}

func init() {
	schemaExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Cache file path (default schema.cache_path, - for stdout)")
	schemaExportCmd.Flags().StringVar(&exportFrom, "from", "database",
		"Where to read the schema from (database, config)")
	schemaCmd.AddCommand(schemaExportCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := database.WithShutdown(context.Background(), nil)
	defer stop()

	s, err := exportSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	return writeSchema(s, exportPath(cfg))
}

func exportSource(ctx context.Context, cfg *config.Config, log *logger.Logger) (*schema.Schema, error) {
	switch exportFrom {
	case "config":
		return schema.FromConfig(&cfg.Schema)
	case "database":
		dbManager := database.NewManager(&cfg.Database)
		if err := dbManager.Connect(ctx); err != nil {
			return nil, err
		}
		defer func() { _ = dbManager.Close() }()
		return schema.Introspect(ctx, dbManager.DB, cfg.Database.Database, inflectorFor(&cfg.Schema), log)
	default:
		return nil, fmt.Errorf("unknown schema export source %q", exportFrom)
	}
}

func exportPath(cfg *config.Config) string {
	if exportOutput != "" {
		return exportOutput
	}
	return cfg.Schema.CachePath
}

// writeSchema saves s to path, or prints it when path is "-".
func writeSchema(s *schema.Schema, path string) error {
	if path == "-" {
		return schema.Encode(outputWriter, s)
	}
	if err := schema.Save(path, s); err != nil {
		return err
	}
	printOK("Wrote %d tables, %d relationships to %s", s.TableCount(), s.RelationshipCount(), path)
	return nil
}
