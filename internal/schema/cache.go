package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// cacheVersion is bumped when the cache layout changes.
const cacheVersion = 1

type cacheFile struct {
	Version int          `yaml:"version"`
	Tables  []cacheTable `yaml:"tables"`
}

type cacheTable struct {
	Name       string          `yaml:"name"`
	PrimaryKey string          `yaml:"primary_key"`
	Singular   string          `yaml:"singular,omitempty"`
	Plural     string          `yaml:"plural,omitempty"`
	Relations  []cacheRelation `yaml:"relations,omitempty"`
}

type cacheRelation struct {
	Table     string  `yaml:"table"`
	Kind      Kind    `yaml:"kind"`
	Singleton bool    `yaml:"singleton,omitempty"`
	Pivots    []Pivot `yaml:"pivots"`
}

// Encode writes the schema as YAML.
func Encode(w io.Writer, s *Schema) error {
	file := cacheFile{Version: cacheVersion}
	for _, name := range s.Tables() {
		t := s.tables[name]
		ct := cacheTable{
			Name:       t.Name,
			PrimaryKey: t.PrimaryKey,
			Singular:   t.Singular,
			Plural:     t.Plural,
		}
		for _, target := range t.RelationNames() {
			rel := t.Relations[target]
			ct.Relations = append(ct.Relations, cacheRelation{
				Table:     rel.Table,
				Kind:      rel.Kind,
				Singleton: rel.Singleton,
				Pivots:    rel.Pivots,
			})
		}
		file.Tables = append(file.Tables, ct)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return enc.Close()
}

// Decode reads a schema written by Encode.
func Decode(r io.Reader, inf Inflector) (*Schema, error) {
	var file cacheFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode schema cache: %w", err)
	}
	if file.Version != cacheVersion {
		return nil, fmt.Errorf("unsupported schema cache version %d (expected %d)", file.Version, cacheVersion)
	}

	b := NewBuilder(inf)
	for _, ct := range file.Tables {
		if err := b.AddTable(ct.Name, ct.PrimaryKey); err != nil {
			return nil, err
		}
		b.SetNames(ct.Name, ct.Singular, ct.Plural)
	}
	for _, ct := range file.Tables {
		for _, cr := range ct.Relations {
			if err := b.AddRelationship(ct.Name, Relationship{
				Table:     cr.Table,
				Kind:      cr.Kind,
				Singleton: cr.Singleton,
				Pivots:    cr.Pivots,
			}); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// Save writes the schema cache file.
func Save(path string, s *Schema) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create schema cache: %w", err)
	}
	if err := Encode(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads a schema cache file.
func Load(path string, inf Inflector) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema cache: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f, inf)
}
