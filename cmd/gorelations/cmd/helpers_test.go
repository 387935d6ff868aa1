package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/schema"
)

const plantYAML = `
database:
  host: localhost
  port: 3306
  user: app
  password: secret
  database: plant
relations:
  allow_nesting: true
  max_depth: 3
schema:
  source: config
  tables:
    factories:
      primary_key: id
      relations:
        - table: machines
          type: hasMany
          foreign_key: factory_id
        - table: workers
          type: manyToMany
          through: factories_workers
          through_local_key: factory_id
          through_remote_key: worker_id
    machines:
      primary_key: id
      relations:
        - table: factories
          type: belongsTo
          foreign_key: factory_id
    workers:
      primary_key: id
      relations:
        - table: factories
          type: manyToMany
          through: factories_workers
          through_local_key: worker_id
          through_remote_key: factory_id
models:
  factories:
    with: [machines]
logging:
  level: error
  format: text
  output: stderr
`

// useConfig writes content to a temp file and points --config at it.
func useConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
	return path
}

// captureOutput redirects command output into a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	setOutputWriter(&buf)
	t.Cleanup(resetOutputWriter)
	return &buf
}

func loadPlantConfig(t *testing.T) *config.Config {
	t.Helper()
	useConfig(t, plantYAML)
	cfg, _, err := loadConfig()
	require.NoError(t, err)
	return cfg
}

func plantSchema(t *testing.T) *schema.Schema {
	t.Helper()
	cfg := loadPlantConfig(t)
	s, err := schema.FromConfig(&cfg.Schema)
	require.NoError(t, err)
	return s
}
