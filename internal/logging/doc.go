// Package logging assembles the structured slog loggers used across Platter.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request and job code can
// automatically tag log lines with record IDs, job IDs, and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
