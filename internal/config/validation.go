package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// validRelationTypes lists the relationship kinds accepted in schema declarations.
var validRelationTypes = map[string]bool{
	"hasMany":     true,
	"hasOne":      true,
	"belongsTo":   true,
	"manyToMany":  true,
	"manyThrough": true,
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateDatabase("database", &c.Database); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateRelations(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateSchema(); err != nil {
		errors = append(errors, err...)
	}

	for _, name := range c.ListModels() {
		model := c.Models[name]
		if err := c.validateModel(name, &model); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateRelations() ValidationErrors {
	var errors ValidationErrors

	if !validShape(c.Relations.DefaultReturnShape) {
		errors = append(errors, ValidationError{
			Field:   "relations.default_return_shape",
			Message: "default_return_shape must be 'object' or 'array'",
		})
	}

	if c.Relations.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "relations.max_depth",
			Message: "max_depth cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateSchema() ValidationErrors {
	var errors ValidationErrors

	validSources := map[string]bool{"config": true, "database": true, "cache": true, "": true}
	if !validSources[c.Schema.Source] {
		errors = append(errors, ValidationError{
			Field:   "schema.source",
			Message: "source must be 'config', 'database', or 'cache'",
		})
	}

	if c.Schema.Source == "cache" && c.Schema.CachePath == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.cache_path",
			Message: "cache_path is required when source is 'cache'",
		})
	}

	if (c.Schema.Source == "config" || c.Schema.Source == "") && len(c.Schema.Tables) == 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.tables",
			Message: "at least one table must be declared when source is 'config'",
		})
	}

	for _, name := range c.ListTables() {
		table := c.Schema.Tables[name]
		prefix := fmt.Sprintf("schema.tables.%s", name)

		if table.PrimaryKey == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".primary_key",
				Message: "primary_key is required",
			})
		}

		for i, rel := range table.Relations {
			relPrefix := fmt.Sprintf("%s.relations[%d]", prefix, i)
			if err := c.validateRelation(relPrefix, &rel); err != nil {
				errors = append(errors, err...)
			}
		}
	}

	return errors
}

func (c *Config) validateRelation(prefix string, rel *RelationConfig) ValidationErrors {
	var errors ValidationErrors

	if rel.Table == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table",
			Message: "table name is required",
		})
	}

	if !validRelationTypes[rel.Type] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".type",
			Message: "type must be 'hasMany', 'hasOne', 'belongsTo', 'manyToMany', or 'manyThrough'",
		})
		return errors
	}

	if len(rel.Pivots) > 0 {
		for i, p := range rel.Pivots {
			if p.Table == "" || p.Key == "" || p.JoinTable == "" || p.JoinKey == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s.pivots[%d]", prefix, i),
					Message: "table, key, join_table and join_key are required",
				})
			}
		}
		return errors
	}

	switch rel.Type {
	case "hasMany", "hasOne", "belongsTo":
		if rel.ForeignKey == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".foreign_key",
				Message: "foreign_key is required when pivots are not given",
			})
		}
	case "manyToMany":
		if rel.Through == "" || rel.ThroughLocalKey == "" || rel.ThroughRemoteKey == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".through",
				Message: "through, through_local_key and through_remote_key are required when pivots are not given",
			})
		}
	case "manyThrough":
		errors = append(errors, ValidationError{
			Field:   prefix + ".pivots",
			Message: "manyThrough relations must declare pivots explicitly",
		})
	}

	return errors
}

func (c *Config) validateModel(name string, model *ModelConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("models.%s", name)

	if model.ReturnShape != "" && !validShape(model.ReturnShape) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".return_shape",
			Message: "return_shape must be 'object' or 'array'",
		})
	}

	for _, w := range model.With {
		if w == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".with",
				Message: "with entries cannot be empty",
			})
			break
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func validShape(shape string) bool {
	return shape == "object" || shape == "array" || shape == ""
}
