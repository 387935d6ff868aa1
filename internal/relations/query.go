package relations

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbsmedya/gorelations/internal/schema"
	"github.com/dbsmedya/gorelations/internal/sqlutil"
)

// OriginatingColumn is the alias of the synthetic column that ties each
// related row back to an origin key. It is removed before rows are attached.
const OriginatingColumn = "originating_id"

// BuildQuery builds the single query resolving rel for the given origin keys.
// originPK is the primary key of the origin table.
//
//   - hasMany / hasOne: the foreign key on the target is the originating key.
//   - belongsTo: the origin is joined in and its primary key is the
//     originating key.
//   - manyToMany / manyThrough: the first pivot gives the originating key and
//     every later pivot is joined, walking back from the target.
func BuildQuery(origin, originPK string, rel *schema.Relationship, keys []any) (sq.SelectBuilder, error) {
	if len(rel.Pivots) == 0 {
		return sq.SelectBuilder{}, newError(MissingPivots, origin, rel.Table)
	}

	target := rel.Table
	q := sq.Select(sqlutil.QualifyAll(target)).From(sqlutil.QuoteIdentifier(target))

	var originating string
	switch rel.Kind {
	case schema.HasMany, schema.HasOne:
		p := rel.Pivots[0]
		originating = sqlutil.Qualify(p.JoinTable, p.JoinKey)

	case schema.BelongsTo:
		p := rel.Pivots[0]
		originating = sqlutil.Qualify(origin, originPK)
		q = q.Join(joinClause(p.Table, p.Key, p.JoinTable, p.JoinKey))

	case schema.ManyToMany, schema.ManyThrough:
		first := rel.Pivots[0]
		originating = sqlutil.Qualify(first.JoinTable, first.JoinKey)
		for i := len(rel.Pivots) - 1; i >= 1; i-- {
			p := rel.Pivots[i]
			q = q.Join(joinClause(p.Table, p.Key, p.JoinTable, p.JoinKey))
		}

	default:
		return sq.SelectBuilder{}, fmt.Errorf("unsupported relation type %q for %s -> %s", rel.Kind, origin, target)
	}

	q = q.Column(originating + " AS " + OriginatingColumn)
	if len(keys) == 1 {
		q = q.Where(sq.Eq{originating: keys[0]})
	} else {
		q = q.Where(sq.Eq{originating: keys})
	}
	return q, nil
}

// joinClause joins table onto an already joined table.
func joinClause(table, key, joinedTable, joinedKey string) string {
	return fmt.Sprintf("%s ON %s = %s",
		sqlutil.QuoteIdentifier(table),
		sqlutil.Qualify(table, key),
		sqlutil.Qualify(joinedTable, joinedKey))
}
