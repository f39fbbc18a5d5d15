// Package config loads mfcs tool configuration from file, environment and
// defaults. File lookup follows the usual order: an explicit --config path,
// then mfcs.yaml in the home directory or the current directory. Environment
// variables use the MFCS_ prefix with underscores (MFCS_OUTPUT_FORMAT).
package config

import (
	"errors"
	"fmt"
	"strings"

	"mfcs/pkg/parser"

	"github.com/spf13/viper"
)

// Config holds all settings for the mfcs command line tool.
type Config struct {
	Parser ParserConfig `mapstructure:"parser"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
}

// ParserConfig controls session behaviour.
type ParserConfig struct {
	// MaxCallBytes caps how much raw text a single envelope may accumulate.
	// Zero or negative disables the cap.
	MaxCallBytes int `mapstructure:"max_call_bytes"`
	// DuplicateFields selects which occurrence wins when a field repeats
	// inside one envelope: "last" or "first".
	DuplicateFields string `mapstructure:"duplicate_fields"`
	// ChunkSize is the fragment size used when replaying files through a
	// session.
	ChunkSize int `mapstructure:"chunk_size"`
}

// OutputConfig controls how parse results are printed.
type OutputConfig struct {
	// Format is one of text, json or yaml.
	Format string `mapstructure:"format"`
	// Render passes content through the terminal markdown renderer.
	Render bool `mapstructure:"render"`
	// Color enables ANSI color in text output.
	Color bool `mapstructure:"color"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig controls result persistence.
type StoreConfig struct {
	// Path is the SQLite result database. Empty disables persistence.
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parser.max_call_bytes", parser.DefaultMaxCallBytes)
	v.SetDefault("parser.duplicate_fields", "last")
	v.SetDefault("parser.chunk_size", 64)
	v.SetDefault("output.format", "text")
	v.SetDefault("output.render", false)
	v.SetDefault("output.color", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.path", "")
}

// Load reads configuration. If path is non-empty that exact file must exist;
// otherwise mfcs.yaml is searched for and a missing file just means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mfcs")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MFCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Parser.DuplicateFields {
	case "last", "first":
	default:
		return fmt.Errorf("invalid parser.duplicate_fields %q (want last or first)", c.Parser.DuplicateFields)
	}
	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output.format %q (want text, json or yaml)", c.Output.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	if c.Parser.ChunkSize <= 0 {
		return fmt.Errorf("invalid parser.chunk_size %d (must be positive)", c.Parser.ChunkSize)
	}
	return nil
}

// DuplicatePolicy maps the configured string onto the parser policy.
func (c *Config) DuplicatePolicy() parser.DuplicateFieldPolicy {
	if c.Parser.DuplicateFields == "first" {
		return parser.FirstFieldWins
	}
	return parser.LastFieldWins
}
