package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/config"
)

func TestDefaultHasUsableValues(t *testing.T) {
	loaded, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file to report exists=false")
	}
	if loaded.Matcher.AbsThreshold != 0.80 {
		t.Fatalf("unexpected abs threshold default: %v", loaded.Matcher.AbsThreshold)
	}
	if loaded.Matcher.GapThreshold != 0.10 {
		t.Fatalf("unexpected gap threshold default: %v", loaded.Matcher.GapThreshold)
	}
	if loaded.Rebuild.Workers != 4 {
		t.Fatalf("unexpected worker default: %d", loaded.Rebuild.Workers)
	}
	if !filepath.IsAbs(loaded.Paths.DataDir) {
		t.Fatalf("expected expanded data dir, got %q", loaded.Paths.DataDir)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
api_bind = "127.0.0.1:9999"

[encoder]
base_url = "http://localhost:9000/"
model_version = "clip-test/2"

[matcher]
abs_threshold = 0.9
top_k = 3

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v path=%q", exists, resolved)
	}
	if cfg.Encoder.BaseURL != "http://localhost:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Encoder.BaseURL)
	}
	if cfg.Encoder.ModelVersion != "clip-test/2" {
		t.Fatalf("unexpected model version %q", cfg.Encoder.ModelVersion)
	}
	if cfg.Matcher.AbsThreshold != 0.9 || cfg.Matcher.TopK != 3 {
		t.Fatalf("matcher overrides not applied: %+v", cfg.Matcher)
	}
	if cfg.Matcher.GapThreshold != 0.10 {
		t.Fatalf("expected gap threshold default, got %v", cfg.Matcher.GapThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "catalog.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad bind", func(c *config.Config) { c.Paths.APIBind = "nonsense" }, "api_bind"},
		{"bad encoder url", func(c *config.Config) { c.Encoder.BaseURL = "not a url" }, "encoder.base_url"},
		{"empty model", func(c *config.Config) { c.Encoder.ModelVersion = "" }, "model_version"},
		{"threshold range", func(c *config.Config) { c.Matcher.AbsThreshold = 1.5 }, "abs_threshold"},
		{"top_k range", func(c *config.Config) { c.Matcher.TopK = 0 }, "top_k"},
		{"workers range", func(c *config.Config) { c.Rebuild.Workers = 100 }, "workers"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	written, err := config.WriteSample(path)
	if err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected written path %q", written)
	}
	if _, err := config.WriteSample(path); err == nil {
		t.Fatal("expected second WriteSample to fail")
	}
}
