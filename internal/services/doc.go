// Package services holds cross-cutting plumbing shared by Platter's
// components: the sentinel error taxonomy with classification helpers, and
// context annotation carriers used for structured logging.
package services
