package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"platter/internal/services"
)

// csvHeaders is the canonical column order for catalog import and export.
var csvHeaders = []string{
	"artist", "title", "year", "label", "format", "country", "location",
	"sort_mode", "catalog_number", "barcode", "discogs_id",
	"discogs_release_id", "discogs_thumb", "cover_url", "cover_local",
	"cover_url_auto", "album_notes", "personal_notes",
}

// YearLookupFunc optionally resolves a missing year during import, for
// example via a Discogs search. It may return 0 when nothing is found.
type YearLookupFunc func(ctx context.Context, artist, title string) int

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportCSV reads records from r and inserts them. Rows missing artist or
// title are skipped and counted rather than aborting the import. When
// lookupYear is non-nil it fills blank years.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader, lookupYear YearLookupFunc) (*ImportResult, error) {
	ctx = ensureContext(ctx)

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import_csv", "empty file", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import_csv", "read header", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index["artist"]; !ok {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import_csv", "missing artist column", nil)
	}
	if _, ok := index["title"]; !ok {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import_csv", "missing title column", nil)
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := &ImportResult{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "catalog", "import_csv",
				fmt.Sprintf("read row %d", result.Imported+result.Skipped+2), err)
		}

		record := &Record{
			Artist:        field(row, "artist"),
			Title:         field(row, "title"),
			Label:         field(row, "label"),
			Format:        field(row, "format"),
			Country:       field(row, "country"),
			Location:      field(row, "location"),
			SortMode:      field(row, "sort_mode"),
			CatalogNumber: field(row, "catalog_number"),
			Barcode:       field(row, "barcode"),
			DiscogsThumb:  field(row, "discogs_thumb"),
			CoverURL:      field(row, "cover_url"),
			CoverLocal:    field(row, "cover_local"),
			CoverURLAuto:  field(row, "cover_url_auto"),
			AlbumNotes:    field(row, "album_notes"),
			PersonalNotes: field(row, "personal_notes"),
		}
		if record.Artist == "" || record.Title == "" {
			result.Skipped++
			continue
		}
		if year, err := strconv.Atoi(field(row, "year")); err == nil {
			record.Year = year
		}
		if id, err := strconv.ParseInt(field(row, "discogs_id"), 10, 64); err == nil {
			record.DiscogsID = id
		}
		if id, err := strconv.ParseInt(field(row, "discogs_release_id"), 10, 64); err == nil {
			record.DiscogsReleaseID = id
		}
		if record.Year == 0 && lookupYear != nil {
			record.Year = lookupYear(ctx, record.Artist, record.Title)
		}

		if _, err := s.CreateRecord(ctx, record); err != nil {
			return nil, err
		}
		result.Imported++
	}
	return result, nil
}

// ExportCSV writes the full catalog to w in the canonical column order.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.AllRecords(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "export_csv", "write header", err)
	}
	for _, record := range records {
		row := []string{
			record.Artist, record.Title, formatInt(record.Year),
			record.Label, record.Format, record.Country, record.Location,
			record.SortMode, record.CatalogNumber, record.Barcode,
			formatInt64(record.DiscogsID), formatInt64(record.DiscogsReleaseID),
			record.DiscogsThumb, record.CoverURL, record.CoverLocal,
			record.CoverURLAuto, record.AlbumNotes, record.PersonalNotes,
		}
		if err := writer.Write(row); err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "export_csv", "write row", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "export_csv", "flush output", err)
	}
	return nil
}

// ImportTemplate writes a header-only CSV suitable as an import starting point.
func ImportTemplate(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "import_template", "write header", err)
	}
	writer.Flush()
	return writer.Error()
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatInt64(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
