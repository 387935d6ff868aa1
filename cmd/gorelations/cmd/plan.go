package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/database"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/relations"
	"github.com/dbsmedya/gorelations/internal/schema"
)

var planKeys int

var planCmd = &cobra.Command{
	Use:   "plan [table...]",
	Short: "Show the query each relationship runs",
	Long: `Plan prints, for every relationship of the given tables (all tables when
none are given), the relation kind, the pivot chain and the single SQL
statement used to load it for a batch of origin keys.

Relationship cycles of three or more tables are listed at the end; nested
loading through them is only bounded by relations.max_depth.

Example:
  gorelations plan factories machines --config relations.yaml`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().IntVar(&planKeys, "keys", 1,
		"Number of origin keys the example SQL is built for")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, closeDB, err := schemaForCommand(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	return renderPlan(s, args, planKeys)
}

// schemaForCommand loads the schema, connecting first only when it has to be
// introspected.
func schemaForCommand(ctx context.Context, cfg *config.Config, log *logger.Logger) (*schema.Schema, func(), error) {
	if cfg.Schema.Source != "database" {
		s, err := loadSchema(ctx, cfg, nil, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load schema: %w", err)
		}
		return s, func() {}, nil
	}

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return nil, nil, err
	}
	s, err := loadSchema(ctx, cfg, dbManager.DB, log)
	if err != nil {
		_ = dbManager.Close()
		return nil, nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return s, func() { _ = dbManager.Close() }, nil
}

// renderPlan prints the relationship plan of the given tables.
func renderPlan(s *schema.Schema, tables []string, keyCount int) error {
	if len(tables) == 0 {
		tables = s.Tables()
	}
	if keyCount < 1 {
		keyCount = 1
	}
	keys := make([]any, keyCount)
	for i := range keys {
		keys[i] = i + 1
	}

	fmt.Fprintln(outputWriter)
	printHeader("Relation Plan")

	for _, name := range tables {
		resolved, ok := s.ResolveName(name)
		if !ok {
			return fmt.Errorf("table %q is not in the schema", name)
		}
		t, _ := s.Table(resolved)

		fmt.Fprintln(outputWriter)
		printSection(fmt.Sprintf("%s (PK: %s)", t.Name, t.PrimaryKey))
		if len(t.Relations) == 0 {
			fmt.Fprintln(outputWriter, "  (no relationships)")
			continue
		}

		for _, target := range t.RelationNames() {
			rel := t.Relations[target]
			field := s.FieldName(rel.Table, rel.Singleton)
			fmt.Fprintf(outputWriter, "  • %s → %s (%s) field: %s\n",
				t.Name, keyStyle.Sprint(rel.Table), rel.Kind, field)
			fmt.Fprintf(outputWriter, "      via: %s\n", pivotChain(rel.Pivots))

			q, err := relations.BuildQuery(t.Name, t.PrimaryKey, rel, keys)
			if err != nil {
				return err
			}
			sql, _, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build query for %s -> %s: %w", t.Name, rel.Table, err)
			}
			fmt.Fprintf(outputWriter, "      sql: %s\n", sql)
		}
	}

	cycles := s.Cycles()
	if len(cycles) > 0 {
		fmt.Fprintln(outputWriter)
		printSection("Relationship Cycles")
		for _, c := range cycles {
			printWarn("%s", c.String())
		}
	}
	return nil
}

// pivotChain renders pivots as "a.id = b.a_id, b.c_id = c.id".
func pivotChain(pivots []schema.Pivot) string {
	steps := make([]string, len(pivots))
	for i, p := range pivots {
		steps[i] = fmt.Sprintf("%s.%s = %s.%s", p.Table, p.Key, p.JoinTable, p.JoinKey)
	}
	return strings.Join(steps, ", ")
}
