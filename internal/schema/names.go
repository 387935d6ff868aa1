package schema

import (
	"github.com/jinzhu/inflection"
)

// Inflector converts table names between singular and plural forms.
// Overrides take precedence over the inflection rules.
type Inflector struct {
	PluralOverrides   map[string]string
	SingularOverrides map[string]string
}

// Plural returns the plural form of word.
func (i Inflector) Plural(word string) string {
	if override, ok := i.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singular returns the singular form of word.
func (i Inflector) Singular(word string) string {
	if override, ok := i.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// indexNames fills the static name table once all tables are known. When
// two tables share an alias, the first table in name order keeps it.
func (s *Schema) indexNames(inf Inflector) {
	names := s.Tables()
	for _, name := range names {
		t := s.tables[name]
		if t.Singular == "" {
			t.Singular = inf.Singular(name)
		}
		if t.Plural == "" {
			t.Plural = inf.Plural(t.Singular)
		}
	}
	for _, name := range names {
		t := s.tables[name]
		for _, alias := range []string{t.Singular, t.Plural} {
			if alias == "" || alias == name {
				continue
			}
			// A real table always wins over an alias.
			if _, isTable := s.tables[alias]; isTable {
				continue
			}
			if _, taken := s.names[alias]; taken {
				continue
			}
			s.names[alias] = name
		}
	}
}
