package schema

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/sqlutil"
)

// Builder assembles a Schema. Tables must be added before relationships that
// target them are validated in Build.
type Builder struct {
	schema    *Schema
	inflector Inflector
}

// NewBuilder creates a new schema builder.
func NewBuilder(inf Inflector) *Builder {
	return &Builder{
		schema:    newSchema(),
		inflector: inf,
	}
}

// AddTable adds a table node. An empty primary key defaults to "id".
func (b *Builder) AddTable(name, primaryKey string) error {
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	if b.schema.HasTable(name) {
		return fmt.Errorf("duplicate table %q", name)
	}
	if primaryKey == "" {
		primaryKey = "id"
	}
	if err := sqlutil.ValidateIdentifiers(name, primaryKey); err != nil {
		return fmt.Errorf("table %q: %w", name, err)
	}

	b.schema.tables[name] = &Table{
		Name:       name,
		PrimaryKey: primaryKey,
		Relations:  make(map[string]*Relationship),
	}
	return nil
}

// SetNames overrides the singular and plural names of a table.
func (b *Builder) SetNames(table, singular, plural string) {
	if t, ok := b.schema.tables[table]; ok {
		t.Singular = singular
		t.Plural = plural
	}
}

// PrimaryKey returns the primary key of an added table.
func (b *Builder) PrimaryKey(table string) (string, bool) {
	t, ok := b.schema.tables[table]
	if !ok {
		return "", false
	}
	return t.PrimaryKey, true
}

// AddRelationship adds a relationship from one table. A later relationship to
// the same target replaces the earlier one.
func (b *Builder) AddRelationship(from string, rel Relationship) error {
	origin, ok := b.schema.tables[from]
	if !ok {
		return fmt.Errorf("relation from undeclared table %q", from)
	}
	if rel.Table == "" {
		return fmt.Errorf("relation table name is empty under %q", from)
	}
	if _, ok := ParseKind(string(rel.Kind)); !ok {
		return fmt.Errorf("invalid relation type %q for %q -> %q", rel.Kind, from, rel.Table)
	}
	if err := validatePivots(from, rel); err != nil {
		return err
	}

	rel.Singleton = rel.Singleton || rel.Kind.Singleton()
	r := rel
	origin.Relations[rel.Table] = &r
	return nil
}

// validatePivots checks that a pivot chain starts at the origin, ends at the
// target and that every step joins onto the previous one.
func validatePivots(from string, rel Relationship) error {
	if len(rel.Pivots) == 0 {
		return fmt.Errorf("relation %q -> %q has no pivots", from, rel.Table)
	}

	switch rel.Kind {
	case HasMany, HasOne, BelongsTo:
		if len(rel.Pivots) != 1 {
			return fmt.Errorf("relation %q -> %q: %s takes exactly one pivot, got %d", from, rel.Table, rel.Kind, len(rel.Pivots))
		}
	case ManyToMany, ManyThrough:
		if len(rel.Pivots) < 2 {
			return fmt.Errorf("relation %q -> %q: %s needs at least two pivots", from, rel.Table, rel.Kind)
		}
	}

	for i, p := range rel.Pivots {
		if err := sqlutil.ValidateIdentifiers(p.Table, p.Key, p.JoinTable, p.JoinKey); err != nil {
			return fmt.Errorf("relation %q -> %q pivot %d: %w", from, rel.Table, i, err)
		}
		if i > 0 && rel.Pivots[i-1].JoinTable != p.Table {
			return fmt.Errorf("relation %q -> %q pivot %d: starts at %q but previous step ends at %q",
				from, rel.Table, i, p.Table, rel.Pivots[i-1].JoinTable)
		}
	}

	first, last := rel.Pivots[0], rel.Pivots[len(rel.Pivots)-1]
	if first.Table != from {
		return fmt.Errorf("relation %q -> %q: first pivot must start at %q, got %q", from, rel.Table, from, first.Table)
	}
	if last.JoinTable != rel.Table {
		return fmt.Errorf("relation %q -> %q: last pivot must end at %q, got %q", from, rel.Table, rel.Table, last.JoinTable)
	}
	return nil
}

// Build validates relationship targets, fills the name table and returns the
// finished schema. The builder must not be used afterwards.
func (b *Builder) Build() (*Schema, error) {
	for _, name := range b.schema.Tables() {
		t := b.schema.tables[name]
		for _, target := range t.RelationNames() {
			if !b.schema.HasTable(target) {
				return nil, fmt.Errorf("relation %q -> %q: target table is not declared", name, target)
			}
		}
	}

	b.schema.indexNames(b.inflector)
	return b.schema, nil
}

// FromConfig builds a schema from the declared tables in configuration.
func FromConfig(cfg *config.SchemaConfig) (*Schema, error) {
	if cfg == nil {
		return nil, fmt.Errorf("schema configuration is nil")
	}

	b := NewBuilder(Inflector{
		PluralOverrides:   cfg.PluralOverrides,
		SingularOverrides: cfg.SingularOverrides,
	})

	names := make([]string, 0, len(cfg.Tables))
	for name := range cfg.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := b.AddTable(name, cfg.Tables[name].PrimaryKey); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		for _, rc := range cfg.Tables[name].Relations {
			rel, err := b.relationFromConfig(name, rc)
			if err != nil {
				return nil, err
			}
			if err := b.AddRelationship(name, rel); err != nil {
				return nil, err
			}
		}
	}

	return b.Build()
}

// relationFromConfig derives the pivot chain from the shorthand fields when
// explicit pivots are not given.
func (b *Builder) relationFromConfig(from string, rc config.RelationConfig) (Relationship, error) {
	kind, ok := ParseKind(rc.Type)
	if !ok {
		return Relationship{}, fmt.Errorf("invalid relation type %q for %q -> %q", rc.Type, from, rc.Table)
	}
	rel := Relationship{Table: rc.Table, Kind: kind}

	if len(rc.Pivots) > 0 {
		for _, p := range rc.Pivots {
			rel.Pivots = append(rel.Pivots, Pivot(p))
		}
		return rel, nil
	}

	originPK, _ := b.PrimaryKey(from)
	targetPK, ok := b.PrimaryKey(rc.Table)
	if !ok {
		targetPK = "id"
	}

	switch kind {
	case HasMany, HasOne:
		if rc.ForeignKey == "" {
			return rel, fmt.Errorf("foreign key is not specified for relation %q -> %q", from, rc.Table)
		}
		rel.Pivots = []Pivot{{Table: from, Key: originPK, JoinTable: rc.Table, JoinKey: rc.ForeignKey}}
	case BelongsTo:
		if rc.ForeignKey == "" {
			return rel, fmt.Errorf("foreign key is not specified for relation %q -> %q", from, rc.Table)
		}
		rel.Pivots = []Pivot{{Table: from, Key: rc.ForeignKey, JoinTable: rc.Table, JoinKey: targetPK}}
	case ManyToMany:
		if rc.Through == "" || rc.ThroughLocalKey == "" || rc.ThroughRemoteKey == "" {
			return rel, fmt.Errorf("through table and keys are required for relation %q -> %q", from, rc.Table)
		}
		rel.Pivots = []Pivot{
			{Table: from, Key: originPK, JoinTable: rc.Through, JoinKey: rc.ThroughLocalKey},
			{Table: rc.Through, Key: rc.ThroughRemoteKey, JoinTable: rc.Table, JoinKey: targetPK},
		}
	case ManyThrough:
		return rel, fmt.Errorf("relation %q -> %q: manyThrough requires explicit pivots", from, rc.Table)
	}
	return rel, nil
}
