// Package config loads and validates the TOML configuration shared by the
// Platter daemon and CLI.
//
// Load resolves a configuration file (explicit path, then
// ~/.config/platter/config.toml, then ./platter.toml), applies repository
// defaults for anything unset, expands ~ in path fields, and validates the
// result. Callers always receive a fully-populated, normalized Config.
package config
