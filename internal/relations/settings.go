package relations

import (
	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/types"
)

// Settings controls engine behaviour for every resolution.
type Settings struct {
	// Silent turns relationship lookup failures into empty results.
	Silent bool
	// AllowNesting lets related rows load their own relations.
	AllowNesting bool
	// DefaultShape applies to tables without a registered fetcher.
	DefaultShape types.Shape
	// MaxDepth disables nested loading at this depth. Zero means no cap.
	MaxDepth int
	// Parallel resolves the relationships of one batch concurrently.
	Parallel bool
}

// DefaultSettings mirrors config.DefaultConfig.
func DefaultSettings() Settings {
	return Settings{
		AllowNesting: true,
		DefaultShape: types.ShapeObject,
		MaxDepth:     3,
	}
}

// SettingsFromConfig converts the relations section of the configuration.
func SettingsFromConfig(cfg *config.RelationsConfig) Settings {
	if cfg == nil {
		return DefaultSettings()
	}
	shape, _ := types.ParseShape(cfg.DefaultReturnShape)
	return Settings{
		Silent:       cfg.Silent,
		AllowNesting: cfg.AllowNesting,
		DefaultShape: shape,
		MaxDepth:     cfg.MaxDepth,
		Parallel:     cfg.Parallel,
	}
}
