package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validateRebuild(); err != nil {
		return err
	}
	if err := c.validateDiscogs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q is not a host:port address: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateEncoder() error {
	parsed, err := url.Parse(c.Encoder.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("encoder.base_url %q is not a valid URL", c.Encoder.BaseURL)
	}
	if c.Encoder.ModelVersion == "" {
		return fmt.Errorf("encoder.model_version must not be empty")
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.AbsThreshold < 0 || c.Matcher.AbsThreshold > 1 {
		return fmt.Errorf("matcher.abs_threshold must be within [0, 1], got %v", c.Matcher.AbsThreshold)
	}
	if c.Matcher.GapThreshold < 0 || c.Matcher.GapThreshold > 1 {
		return fmt.Errorf("matcher.gap_threshold must be within [0, 1], got %v", c.Matcher.GapThreshold)
	}
	if c.Matcher.TopK < 1 || c.Matcher.TopK > 50 {
		return fmt.Errorf("matcher.top_k must be within [1, 50], got %d", c.Matcher.TopK)
	}
	return nil
}

func (c *Config) validateRebuild() error {
	if c.Rebuild.Workers < 1 || c.Rebuild.Workers > 64 {
		return fmt.Errorf("rebuild.workers must be within [1, 64], got %d", c.Rebuild.Workers)
	}
	if c.Rebuild.ItemTimeoutSeconds < 1 {
		return fmt.Errorf("rebuild.item_timeout_seconds must be positive, got %d", c.Rebuild.ItemTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateDiscogs() error {
	parsed, err := url.Parse(c.Discogs.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("discogs.base_url %q is not a valid URL", c.Discogs.BaseURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
