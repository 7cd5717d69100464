// Package config loads feedex settings.
//
// Settings come from, in increasing priority: built-in defaults, a YAML file
// (FEEDEX_CONFIG or <config dir>/config.yaml), a .env file in the config
// directory, and FEEDEX_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Output formats understood by the CLI.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatNative  = "native"
	FormatOutline = "outline"
)

// Color modes for outline output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

const defaultMaxDepth = 512

var (
	ErrInvalidFormat = errors.New("invalid output format")
	ErrInvalidColor  = errors.New("invalid color mode")
	ErrInvalidDepth  = errors.New("max depth must be positive")
	ErrInvalidLevel  = errors.New("invalid log level")
	ErrInvalidIndent = errors.New("indent must not be negative")
	ErrInvalidWidth  = errors.New("max width must not be negative")
)

// Config is the top-level configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Output    OutputConfig    `yaml:"output"`
	Transcode TranscodeConfig `yaml:"transcode"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// OutputConfig controls how parsed feeds are written.
type OutputConfig struct {
	Format string `yaml:"format"`
	// Indent is the indent width; 0 writes compact JSON.
	Indent   int    `yaml:"indent"`
	Color    string `yaml:"color"`
	MaxWidth int    `yaml:"max_width"`
}

// TranscodeConfig controls the tree transcoder.
type TranscodeConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// Dir returns the configuration directory.
func Dir() string {
	if dir := os.Getenv("FEEDEX_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "feedex")
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load builds the effective configuration. An empty path falls back to
// FEEDEX_CONFIG and then DefaultPath; only an explicitly named file must exist.
func Load(path string) (*Config, error) {
	if err := loadDotenv(filepath.Join(Dir(), ".env")); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("FEEDEX_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath()
		}
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// decode expands ${VAR} references and rejects unknown keys.
func decode(data []byte, cfg *Config) error {
	expanded := os.Expand(string(data), os.Getenv)

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FEEDEX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FEEDEX_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("FEEDEX_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("FEEDEX_COLOR"); v != "" {
		cfg.Output.Color = v
	}
	if err := envInt("FEEDEX_INDENT", &cfg.Output.Indent); err != nil {
		return err
	}
	return envInt("FEEDEX_MAX_DEPTH", &cfg.Transcode.MaxDepth)
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatJSON
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = ColorAuto
	}
	if cfg.Output.MaxWidth == 0 {
		cfg.Output.MaxWidth = 80
	}
	if cfg.Transcode.MaxDepth == 0 {
		cfg.Transcode.MaxDepth = defaultMaxDepth
	}
	if strings.HasPrefix(cfg.Log.File, "~/") {
		home, _ := os.UserHomeDir()
		cfg.Log.File = filepath.Join(home, cfg.Log.File[2:])
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := ValidateFormat(c.Output.Format); err != nil {
		return err
	}
	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w %q: must be 'auto', 'always' or 'never'", ErrInvalidColor, c.Output.Color)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w %q: must be 'debug', 'info', 'warn' or 'error'", ErrInvalidLevel, c.Log.Level)
	}
	if c.Transcode.MaxDepth < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidDepth, c.Transcode.MaxDepth)
	}
	if c.Output.Indent < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidIndent, c.Output.Indent)
	}
	if c.Output.MaxWidth < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidWidth, c.Output.MaxWidth)
	}
	return nil
}

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	switch format {
	case FormatJSON, FormatYAML, FormatNative, FormatOutline:
		return nil
	}
	return fmt.Errorf("%w %q: must be 'json', 'yaml', 'native' or 'outline'", ErrInvalidFormat, format)
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
