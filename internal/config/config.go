// Package config provides configuration structures and loading for gorelations.
package config

// Config represents the complete application configuration.
type Config struct {
	Database  DatabaseConfig         `yaml:"database" mapstructure:"database"`
	Relations RelationsConfig        `yaml:"relations" mapstructure:"relations"`
	Schema    SchemaConfig           `yaml:"schema" mapstructure:"schema"`
	Models    map[string]ModelConfig `yaml:"models" mapstructure:"models"`
	Logging   LoggingConfig          `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// RelationsConfig controls the relation loading engine.
type RelationsConfig struct {
	// Silent makes relationship lookup failures return empty results instead of errors.
	Silent bool `yaml:"silent" mapstructure:"silent"`
	// AllowNesting lets related rows load their own relations (one table excluded per level).
	AllowNesting bool `yaml:"allow_nesting" mapstructure:"allow_nesting"`
	// DefaultReturnShape is used for tables without a bound model: "object" or "array".
	DefaultReturnShape string `yaml:"default_return_shape" mapstructure:"default_return_shape"`
	// MaxDepth caps nested relation loading regardless of exclusion lists.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
	// Parallel issues independent relationship queries concurrently.
	Parallel bool `yaml:"parallel" mapstructure:"parallel"`
}

// SchemaConfig describes where the schema graph comes from.
type SchemaConfig struct {
	Source            string                 `yaml:"source" mapstructure:"source"` // config, database, cache
	CachePath         string                 `yaml:"cache_path" mapstructure:"cache_path"`
	Tables            map[string]TableConfig `yaml:"tables" mapstructure:"tables"`
	PluralOverrides   map[string]string      `yaml:"plural_overrides" mapstructure:"plural_overrides"`
	SingularOverrides map[string]string      `yaml:"singular_overrides" mapstructure:"singular_overrides"`
}

// TableConfig declares one table of the schema graph.
type TableConfig struct {
	PrimaryKey string           `yaml:"primary_key" mapstructure:"primary_key"`
	Relations  []RelationConfig `yaml:"relations" mapstructure:"relations"`
}

// RelationConfig declares a relationship from the owning table to Table.
//
// Either Pivots is given explicitly, or the chain is derived from the shorthand
// fields: ForeignKey for hasMany/hasOne/belongsTo, Through with ThroughLocalKey and
// ThroughRemoteKey for manyToMany.
type RelationConfig struct {
	Table            string        `yaml:"table" mapstructure:"table"`
	Type             string        `yaml:"type" mapstructure:"type"` // hasMany, hasOne, belongsTo, manyToMany, manyThrough
	ForeignKey       string        `yaml:"foreign_key" mapstructure:"foreign_key"`
	Through          string        `yaml:"through" mapstructure:"through"`
	ThroughLocalKey  string        `yaml:"through_local_key" mapstructure:"through_local_key"`
	ThroughRemoteKey string        `yaml:"through_remote_key" mapstructure:"through_remote_key"`
	Pivots           []PivotConfig `yaml:"pivots" mapstructure:"pivots"`
}

// PivotConfig is one join step: Table.Key = JoinTable.JoinKey.
type PivotConfig struct {
	Table     string `yaml:"table" mapstructure:"table"`
	Key       string `yaml:"key" mapstructure:"key"`
	JoinTable string `yaml:"join_table" mapstructure:"join_table"`
	JoinKey   string `yaml:"join_key" mapstructure:"join_key"`
}

// ModelConfig binds a table to a relation-aware row fetcher.
type ModelConfig struct {
	PrimaryKey   string   `yaml:"primary_key" mapstructure:"primary_key"`
	ReturnShape  string   `yaml:"return_shape" mapstructure:"return_shape"` // object or array
	SoftDeletes  bool     `yaml:"soft_deletes" mapstructure:"soft_deletes"`
	DeletedField string   `yaml:"deleted_field" mapstructure:"deleted_field"`
	With         []string `yaml:"with" mapstructure:"with"`
	Without      []string `yaml:"without" mapstructure:"without"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Relations: RelationsConfig{
			Silent:             false,
			AllowNesting:       true,
			DefaultReturnShape: "object",
			MaxDepth:           3,
			Parallel:           false,
		},
		Schema: SchemaConfig{
			Source:    "config",
			CachePath: "schema.cache.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// GetModel returns the model binding for a table, falling back to the schema primary key.
func (c *Config) GetModel(table string) (ModelConfig, bool) {
	m, ok := c.Models[table]
	if !ok {
		return ModelConfig{}, false
	}
	if m.PrimaryKey == "" {
		if t, ok := c.Schema.Tables[table]; ok && t.PrimaryKey != "" {
			m.PrimaryKey = t.PrimaryKey
		} else {
			m.PrimaryKey = "id"
		}
	}
	if m.ReturnShape == "" {
		m.ReturnShape = c.Relations.DefaultReturnShape
	}
	if m.SoftDeletes && m.DeletedField == "" {
		m.DeletedField = "deleted_at"
	}
	return m, true
}
