package testsupport

import (
	"context"
	"testing"

	"platter/internal/catalog"
	"platter/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord creates a record for tests using the provided store.
func NewRecord(t testing.TB, store *catalog.Store, artist, title string) *catalog.Record {
	t.Helper()

	record, err := store.CreateRecord(context.Background(), &catalog.Record{
		Artist: artist,
		Title:  title,
	})
	if err != nil {
		t.Fatalf("store.CreateRecord: %v", err)
	}
	return record
}
