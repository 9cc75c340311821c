package testsupport

import (
	"path/filepath"
	"testing"

	"platter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CoversDir = filepath.Join(base, "covers")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Rebuild.Workers = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithEncoderURL points the encoder client at a test server.
func WithEncoderURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Encoder.BaseURL = url
	}
}

// WithDiscogs sets the Discogs endpoint and token on the test config.
func WithDiscogs(url, token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Discogs.BaseURL = url
		cfg.Discogs.Token = token
	}
}

// WithMatcherThresholds overrides the confidence policy on the test config.
func WithMatcherThresholds(abs, gap float64, topK int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Matcher.AbsThreshold = abs
		cfg.Matcher.GapThreshold = gap
		cfg.Matcher.TopK = topK
	}
}
