package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeMatcher()
	c.normalizeRebuild()
	c.normalizeDiscogs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CoversDir) == "" {
		c.Paths.CoversDir = defaultCoversDir
	}
	if c.Paths.CoversDir, err = expandPath(c.Paths.CoversDir); err != nil {
		return fmt.Errorf("paths.covers_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.BaseURL = strings.TrimRight(strings.TrimSpace(c.Encoder.BaseURL), "/")
	if c.Encoder.BaseURL == "" {
		c.Encoder.BaseURL = defaultEncoderBaseURL
	}
	c.Encoder.ModelVersion = strings.TrimSpace(c.Encoder.ModelVersion)
	if c.Encoder.ModelVersion == "" {
		c.Encoder.ModelVersion = defaultEncoderModelVersion
	}
	if c.Encoder.TimeoutSeconds <= 0 {
		c.Encoder.TimeoutSeconds = defaultEncoderTimeoutSeconds
	}
}

func (c *Config) normalizeMatcher() {
	if c.Matcher.AbsThreshold == 0 {
		c.Matcher.AbsThreshold = defaultMatcherAbsThreshold
	}
	if c.Matcher.GapThreshold == 0 {
		c.Matcher.GapThreshold = defaultMatcherGapThreshold
	}
	if c.Matcher.TopK <= 0 {
		c.Matcher.TopK = defaultMatcherTopK
	}
}

func (c *Config) normalizeRebuild() {
	if c.Rebuild.Workers <= 0 {
		c.Rebuild.Workers = defaultRebuildWorkers
	}
	if c.Rebuild.ItemTimeoutSeconds <= 0 {
		c.Rebuild.ItemTimeoutSeconds = defaultRebuildItemTimeoutSeconds
	}
}

func (c *Config) normalizeDiscogs() {
	if c.Discogs.Token == "" {
		if value, ok := os.LookupEnv("DISCOGS_TOKEN"); ok {
			c.Discogs.Token = value
		}
	}
	c.Discogs.BaseURL = strings.TrimRight(strings.TrimSpace(c.Discogs.BaseURL), "/")
	if c.Discogs.BaseURL == "" {
		c.Discogs.BaseURL = defaultDiscogsBaseURL
	}
	c.Discogs.UserAgent = strings.TrimSpace(c.Discogs.UserAgent)
	if c.Discogs.UserAgent == "" {
		c.Discogs.UserAgent = defaultDiscogsUserAgent
	}
	if c.Discogs.TimeoutSeconds <= 0 {
		c.Discogs.TimeoutSeconds = defaultDiscogsTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
