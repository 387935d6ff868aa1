package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
	silent    bool
	noNesting bool
	maxDepth  int
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "gorelations",
	Short: "Schema-driven relation loader for MySQL",
	Long: `Load related rows for any table described by a relationship schema,
one query per relationship no matter how many rows are requested.

Features:
  - hasMany, hasOne, belongsTo, manyToMany and manyThrough relationships
  - Schema from YAML, a cached export, or information_schema introspection
  - Nested loading with per-level exclusion and a depth cap
  - Pivot membership changes (add, remove, set) for many-to-many relations`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadDotEnv,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "relations.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Environment file loaded before the configuration (ignored when missing)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Engine overrides
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false,
		"Return empty results instead of errors for unknown relationships")
	rootCmd.PersistentFlags().BoolVar(&noNesting, "no-nesting", false,
		"Do not let related rows load their own relations")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0,
		"Override maximum nesting depth")

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable coloured output")
}

// loadDotEnv populates the process environment from --env-file so ${VAR}
// references in the configuration resolve. Variables already set win.
func loadDotEnv(cmd *cobra.Command, args []string) error {
	if noColor {
		color.Disable()
	}
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	Silent    bool
	NoNesting bool
	MaxDepth  int
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Silent:    silent,
		NoNesting: noNesting,
		MaxDepth:  maxDepth,
	}
}
