// Package schema holds the read-only table and relationship graph the relation
// engine resolves against.
package schema

import (
	"sort"
)

// Kind identifies how two tables are related.
type Kind string

const (
	HasMany     Kind = "hasMany"
	HasOne      Kind = "hasOne"
	BelongsTo   Kind = "belongsTo"
	ManyToMany  Kind = "manyToMany"
	ManyThrough Kind = "manyThrough"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case HasMany, HasOne, BelongsTo, ManyToMany, ManyThrough:
		return k, true
	default:
		return "", false
	}
}

// Singleton reports whether relationships of this kind resolve to at most one row.
func (k Kind) Singleton() bool {
	return k == BelongsTo || k == HasOne
}

// Pivot is one join step: Table.Key = JoinTable.JoinKey.
type Pivot struct {
	Table     string `yaml:"table"`
	Key       string `yaml:"key"`
	JoinTable string `yaml:"join_table"`
	JoinKey   string `yaml:"join_key"`
}

// Relationship describes the path from one table to a related table.
type Relationship struct {
	Table     string  // Target table
	Kind      Kind    // How the tables relate
	Singleton bool    // At most one related row per origin
	Pivots    []Pivot // Join steps from the origin to Table
}

// Table is one node of the schema graph.
type Table struct {
	Name       string
	PrimaryKey string
	Singular   string
	Plural     string
	Relations  map[string]*Relationship // target table -> relationship
}

// RelationNames returns the related table names, sorted.
func (t *Table) RelationNames() []string {
	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema maps table names to tables. It is not modified after Build returns,
// so concurrent reads need no locking.
type Schema struct {
	tables map[string]*Table
	names  map[string]string // singular/plural name -> table name
}

// newSchema creates an empty schema.
func newSchema() *Schema {
	return &Schema{
		tables: make(map[string]*Table),
		names:  make(map[string]string),
	}
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Relationship returns the relationship from one table to another.
func (s *Schema) Relationship(from, to string) (*Relationship, bool) {
	t, ok := s.tables[from]
	if !ok {
		return nil, false
	}
	rel, ok := t.Relations[to]
	return rel, ok
}

// HasTable returns true if the schema contains the table.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Tables returns all table names, sorted.
func (s *Schema) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableCount returns the number of tables.
func (s *Schema) TableCount() int {
	return len(s.tables)
}

// RelationshipCount returns the number of directed relationships.
func (s *Schema) RelationshipCount() int {
	count := 0
	for _, t := range s.tables {
		count += len(t.Relations)
	}
	return count
}

// ResolveName maps a table name or its singular/plural form to the table name.
func (s *Schema) ResolveName(name string) (string, bool) {
	if _, ok := s.tables[name]; ok {
		return name, true
	}
	table, ok := s.names[name]
	return table, ok
}

// FieldName returns the row field a relationship to target is attached under:
// the singular name for singletons and the table name otherwise.
func (s *Schema) FieldName(target string, singleton bool) string {
	if !singleton {
		return target
	}
	if t, ok := s.tables[target]; ok && t.Singular != "" {
		return t.Singular
	}
	return target
}
