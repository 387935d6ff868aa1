package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorelations/internal/database"
	"github.com/dbsmedya/gorelations/internal/lock"
	"github.com/dbsmedya/gorelations/internal/relations"
	"github.com/dbsmedya/gorelations/internal/schema"
	"github.com/dbsmedya/gorelations/internal/types"
)

var lockTimeout int

var linkCmd = &cobra.Command{
	Use:   "link <table> <id> <op> <related> [keys...]",
	Short: "Read or change the relations of one row",
	Long: `Link runs one relation operation for the row of <table> with primary key
<id>. Operations:

  has     whether the row is related to all given keys (or to anything)
  get     the related rows
  keys    the primary keys of the related rows
  add     insert pivot rows for the given keys
  remove  delete pivot rows for the given keys
  set     replace all pivot rows with the given keys

add, remove and set work on manyToMany relationships only. They hold a MySQL
named lock on the pivot table while writing, so concurrent runs do not
interleave the delete and insert of set.

Examples:
  gorelations link factories 1 add workers 4 5
  gorelations link factories 1 has workers 4`,
	Args: cobra.MinimumNArgs(4),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().IntVar(&lockTimeout, "lock-timeout", lock.TimeoutMedium,
		"Seconds to wait for the pivot table lock (-1 waits forever)")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx, stop := database.WithShutdown(context.Background(), nil)
	defer stop()

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	return invokeLink(ctx, env, args[0], args[1], args[2], args[3], args[4:])
}

// invokeLink runs op on the row of table identified by id and prints the
// outcome. Pivot writes run under the pivot table lock.
func invokeLink(ctx context.Context, env *environment, table, id, opName, related string, keys []string) error {
	op, ok := relations.ParseOp(opName)
	if !ok {
		return fmt.Errorf("unknown operation %q (expected one of: %s)", opName, strings.Join(opNames(), ", "))
	}

	m, err := env.Model(table)
	if err != nil {
		return err
	}
	acc, err := m.Accessor(types.RowOf(m.PrimaryKey(), id))
	if err != nil {
		return err
	}

	var out any
	invoke := func() error {
		out, err = acc.Invoke(ctx, op, related, stringsToKeys(keys)...)
		return err
	}

	switch op {
	case relations.OpAdd, relations.OpRemove, relations.OpSet:
		pivot, ok := pivotTable(env.schema, m.Table(), related)
		if !ok {
			// let the accessor report why the relation cannot be written
			return invoke()
		}
		if err := lock.WithPivotLock(ctx, env.db.DB, pivot, lockTimeout, invoke); err != nil {
			return err
		}
		printOK("%s %s %v on %s %s", op, related, keys, m.Table(), id)
		return nil
	default:
		if err := invoke(); err != nil {
			return err
		}
		return printJSON(out)
	}
}

// pivotTable returns the pivot table of a manyToMany relationship.
func pivotTable(s *schema.Schema, table, related string) (string, bool) {
	target, ok := s.ResolveName(related)
	if !ok {
		return "", false
	}
	rel, ok := s.Relationship(table, target)
	if !ok || rel.Kind != schema.ManyToMany || len(rel.Pivots) == 0 {
		return "", false
	}
	return rel.Pivots[0].JoinTable, true
}

func opNames() []string {
	names := []string{
		string(relations.OpHas), string(relations.OpGet), string(relations.OpKeys),
		string(relations.OpAdd), string(relations.OpRemove), string(relations.OpSet),
	}
	sort.Strings(names)
	return names
}
