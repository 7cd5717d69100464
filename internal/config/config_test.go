package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// isolate points the config directory at an empty temp dir and clears
// FEEDEX_* overrides for the duration of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FEEDEX_CONFIG_DIR", dir)
	for _, key := range []string{"FEEDEX_CONFIG", "FEEDEX_LOG_LEVEL", "FEEDEX_LOG_FILE", "FEEDEX_FORMAT", "FEEDEX_COLOR", "FEEDEX_INDENT", "FEEDEX_MAX_DEPTH"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestAC900_Config_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file should not be an error: %v", err)
	}

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Output.Format != FormatJSON || cfg.Transcode.MaxDepth != 512 || cfg.Log.Level != "warn" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestAC900_Config_ReadsDefaultFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.yaml"), `
log:
  level: debug
output:
  format: outline
  indent: 4
transcode:
  max_depth: 64
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Output.Format != FormatOutline || cfg.Output.Indent != 4 || cfg.Transcode.MaxDepth != 64 {
		t.Errorf("file settings should be applied, got %+v", cfg)
	}
	if cfg.Output.Color != ColorAuto {
		t.Errorf("unset fields should keep defaults, got color %q", cfg.Output.Color)
	}
}

func TestAC901_Config_ExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))

	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("missing explicit file should fail, got: %v", err)
	}
}

func TestAC901_Config_RejectsUnknownKeys(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "typo.yaml")
	writeFile(t, path, "output:\n  fromat: yaml\n")

	if _, err := Load(path); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestAC902_Config_EnvironmentOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "output:\n  format: yaml\ntranscode:\n  max_depth: 10\n")
	t.Setenv("FEEDEX_CONFIG", path)
	t.Setenv("FEEDEX_FORMAT", "native")
	t.Setenv("FEEDEX_MAX_DEPTH", "20")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Output.Format != FormatNative || cfg.Transcode.MaxDepth != 20 {
		t.Errorf("environment should win over the file, got %+v", cfg)
	}
}

func TestAC902_Config_ExpandsVariablesInFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FEEDEX_TEST_LOG_DIR", dir)
	path := filepath.Join(dir, "vars.yaml")
	writeFile(t, path, "log:\n  file: ${FEEDEX_TEST_LOG_DIR}/feedex.log\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.File != filepath.Join(dir, "feedex.log") {
		t.Errorf("variables should be expanded, got %q", cfg.Log.File)
	}
}

func TestAC903_Config_LoadsDotenvFromConfigDir(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("FEEDEX_FORMAT")
	t.Cleanup(func() { os.Unsetenv("FEEDEX_FORMAT") })
	writeFile(t, filepath.Join(dir, ".env"), "FEEDEX_FORMAT=yaml\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Output.Format != FormatYAML {
		t.Errorf(".env settings should be applied, got %q", cfg.Output.Format)
	}
}

func TestAC904_Config_ValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"format", func(c *Config) { c.Output.Format = "xml" }, ErrInvalidFormat},
		{"color", func(c *Config) { c.Output.Color = "sometimes" }, ErrInvalidColor},
		{"depth", func(c *Config) { c.Transcode.MaxDepth = -1 }, ErrInvalidDepth},
		{"level", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLevel},
		{"zero depth", func(c *Config) { c.Transcode.MaxDepth = 0 }, ErrInvalidDepth},
		{"indent", func(c *Config) { c.Output.Indent = -1 }, ErrInvalidIndent},
		{"width", func(c *Config) { c.Output.MaxWidth = -5 }, ErrInvalidWidth},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAC904_Config_InvalidEnvironmentNumber(t *testing.T) {
	isolate(t)
	t.Setenv("FEEDEX_MAX_DEPTH", "deep")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "FEEDEX_MAX_DEPTH") {
		t.Errorf("non-numeric depth should fail naming the variable, got: %v", err)
	}
}

func TestAC905_Config_MarshalRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Output.Format = FormatYAML

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("marshalled config should be valid YAML: %v", err)
	}
	if diff := cmp.Diff(cfg, &back); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
