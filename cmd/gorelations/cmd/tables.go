package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorelations/internal/schema"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List schema tables and their relationships",
	Long: `Tables lists every table of the relationship schema with its primary key,
the singular and plural names it can be addressed by, and its relationships.

Example:
  gorelations tables --config relations.yaml`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
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

	renderTables(s)
	return nil
}

func renderTables(s *schema.Schema) {
	fmt.Fprintln(outputWriter)
	printSection(fmt.Sprintf("Tables (%d)", s.TableCount()))

	rows := make([][]string, 0, s.TableCount())
	for _, name := range s.Tables() {
		t, _ := s.Table(name)
		rels := make([]string, 0, len(t.Relations))
		for _, target := range t.RelationNames() {
			rels = append(rels, fmt.Sprintf("%s(%s)", target, t.Relations[target].Kind))
		}
		relText := strings.Join(rels, ", ")
		if relText == "" {
			relText = "-"
		}
		rows = append(rows, []string{t.Name, t.PrimaryKey, t.Singular, t.Plural, relText})
	}
	printTable([]string{"TABLE", "PK", "SINGULAR", "PLURAL", "RELATIONS"}, rows)
}
