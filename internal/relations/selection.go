package relations

import (
	"github.com/dbsmedya/gorelations/internal/sqlutil"
)

// Selection is the relation request of one finder call.
type Selection struct {
	With    []string
	Without []string
	// Reindex keys the result by primary key.
	Reindex bool
	// Joined marks a query with a manual join; it disables reindexing.
	Joined bool
	// WithDeleted lists related tables whose soft-deleted rows are included.
	WithDeleted []string
}

// ValidateWithout checks that every name could be a table name.
func ValidateWithout(names []string) error {
	for _, name := range names {
		if !sqlutil.IsValidIdentifier(name) {
			return newError(InvalidWithoutArgument, name)
		}
	}
	return nil
}

// effective returns With minus Without and the trail exclusions, keeping
// the order of With and dropping duplicates. resolve maps aliases such as
// singular names to table names.
func (s Selection) effective(trail Trail, resolve func(string) string) []string {
	if trail.Disabled {
		return nil
	}

	skip := make(map[string]bool, len(s.Without)+len(trail.Excluded))
	for _, name := range s.Without {
		skip[resolve(name)] = true
	}
	for _, name := range trail.Excluded {
		skip[name] = true
	}

	var out []string
	for _, name := range s.With {
		table := resolve(name)
		if table == "" || skip[table] {
			continue
		}
		skip[table] = true
		out = append(out, table)
	}
	return out
}
