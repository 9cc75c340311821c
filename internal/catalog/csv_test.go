package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"platter/internal/catalog"
	"platter/internal/services"
	"platter/internal/testsupport"
)

func TestImportCSV(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	input := strings.Join([]string{
		"artist,title,year,label,format",
		"The Clash,London Calling,1979,CBS,LP",
		",Missing Artist,1980,,",
		"Nina Simone,Pastel Blues,,Philips,",
	}, "\n")

	result, err := store.ImportCSV(ctx, strings.NewReader(input), func(ctx context.Context, artist, title string) int {
		if artist == "Nina Simone" {
			return 1965
		}
		return 0
	})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	records, _, err := store.ListRecords(ctx, catalog.ListOptions{Search: "Nina"})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 || records[0].Year != 1965 {
		t.Fatalf("expected looked-up year 1965, got %+v", records)
	}
	if records[0].Format != catalog.DefaultFormat {
		t.Fatalf("expected default format, got %q", records[0].Format)
	}
}

func TestImportCSVRejectsMissingColumns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.ImportCSV(context.Background(), strings.NewReader("artist,year\nSomeone,1999\n"), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record := testsupport.NewRecord(t, store, "Joni Mitchell", "Blue")
	record.Year = 1971
	record.CoverURL = "https://example.com/blue.jpg"
	if err := store.UpdateRecord(ctx, record); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	var buf bytes.Buffer
	if err := store.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Joni Mitchell") || !strings.Contains(out, "1971") {
		t.Fatalf("export missing record data:\n%s", out)
	}

	fresh := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	result, err := fresh.ImportCSV(ctx, &buf, nil)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("expected 1 re-imported record, got %+v", result)
	}
}

func TestImportTemplateHasCanonicalHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := catalog.ImportTemplate(&buf); err != nil {
		t.Fatalf("ImportTemplate: %v", err)
	}
	header := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(header, "artist,title,year") {
		t.Fatalf("unexpected template header: %q", header)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected header-only template, got:\n%s", buf.String())
	}
}
