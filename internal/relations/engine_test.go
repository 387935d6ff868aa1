package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gorelations/internal/schema"
	"github.com/dbsmedya/gorelations/internal/types"
)

func TestNewEngine_NoSchema(t *testing.T) {
	_, err := NewEngine(nil, nil, DefaultSettings(), nil)
	assert.ErrorIs(t, err, ErrNoSchemaAvailable)

	var s *schema.Schema
	_, err = NewEngine(s, nil, DefaultSettings(), nil)
	assert.ErrorIs(t, err, ErrNoSchemaAvailable)
}

func TestEngine_Register(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSettings())

	err := e.Register(NewTableFetcher(e.DB(), "robots", "id", types.ShapeObject))
	assert.ErrorIs(t, err, ErrNotRelatable)

	err = e.Register(NewTableFetcher(e.DB(), "workers", "", types.ShapeObject))
	assert.ErrorIs(t, err, ErrMissingProperty)

	f := NewTableFetcher(e.DB(), "workers", "id", types.ShapeArray)
	require.NoError(t, e.Register(f))
	assert.Same(t, f, e.Fetcher("workers"))
}

func TestEngine_DefaultFetcher(t *testing.T) {
	e, _ := newTestEngine(t, Settings{AllowNesting: true})

	f := e.Fetcher("machines")
	assert.Equal(t, "machines", f.Table())
	assert.Equal(t, "id", f.PrimaryKey())
	assert.Equal(t, types.ShapeObject, f.Shape())
}
