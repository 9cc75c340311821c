package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	CoversDir string `toml:"covers_dir"`
	APIBind   string `toml:"api_bind"`
}

// Encoder contains configuration for the image encoder sidecar.
type Encoder struct {
	BaseURL        string `toml:"base_url"`
	ModelVersion   string `toml:"model_version"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Matcher contains the cover-match confidence policy constants.
type Matcher struct {
	// AbsThreshold is the minimum top score required for a confident match.
	AbsThreshold float64 `toml:"abs_threshold"`
	// GapThreshold is the minimum lead over the runner-up required for a
	// confident match.
	GapThreshold float64 `toml:"gap_threshold"`
	// TopK is the number of candidates returned for manual disambiguation.
	TopK int `toml:"top_k"`
}

// Rebuild contains batch embedding rebuild settings.
type Rebuild struct {
	Workers            int `toml:"workers"`
	ItemTimeoutSeconds int `toml:"item_timeout_seconds"`
}

// Discogs contains configuration for the Discogs metadata provider.
type Discogs struct {
	Token          string `toml:"token"`
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Platter.
//
// Configuration sections by subsystem:
//   - Paths: data/log/cover directories and API bind address
//   - Encoder: image embedding sidecar connection and pinned model version
//   - Matcher: cover-match confidence thresholds
//   - Rebuild: batch embedding job concurrency and timeouts
//   - Discogs: metadata provider credentials and endpoints
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Encoder Encoder `toml:"encoder"`
	Matcher Matcher `toml:"matcher"`
	Rebuild Rebuild `toml:"rebuild"`
	Discogs Discogs `toml:"discogs"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/platter/config.toml")
}

// SampleConfig returns the annotated sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// configuration file was found; defaults apply when it was not.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("platter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CoversDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the catalog database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// ItemTimeout returns the per-record embedding timeout as a duration.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Rebuild.ItemTimeoutSeconds) * time.Second
}

// WriteSample writes the sample configuration file to the given path,
// refusing to overwrite an existing file.
func WriteSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
