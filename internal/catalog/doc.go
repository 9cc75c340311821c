// Package catalog persists the vinyl collection in SQLite: records, their
// tracklists, and the cover-embedding rows keyed by record ID.
//
// The store opens one database under the configured data directory, applies
// embedded migrations on startup, and retries on SQLITE_BUSY so concurrent
// API reads and batch writes coexist on a single WAL-mode database file.
package catalog
