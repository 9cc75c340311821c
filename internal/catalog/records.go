package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"platter/internal/services"
)

const recordColumns = `id, artist, title, year, label, format, country, location,
catalog_number, barcode, discogs_id, discogs_release_id, discogs_thumb,
cover_url, cover_local, cover_url_auto, album_notes, personal_notes,
sort_mode, created_at, updated_at`

// CreateRecord inserts a new record and returns it with its assigned ID.
func (s *Store) CreateRecord(ctx context.Context, record *Record) (*Record, error) {
	if record == nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create_record", "record is nil", nil)
	}
	if strings.TrimSpace(record.Artist) == "" || strings.TrimSpace(record.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create_record", "artist and title are required", nil)
	}

	record.ApplyDefaults()
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	res, err := s.execWithRetry(ctx, `
INSERT INTO records (
  artist, title, year, label, format, country, location,
  catalog_number, barcode, discogs_id, discogs_release_id, discogs_thumb,
  cover_url, cover_local, cover_url_auto, album_notes, personal_notes,
  sort_mode, sort_artist, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Artist, record.Title, nullableInt(int64(record.Year)),
		nullableString(record.Label), nullableString(record.Format),
		nullableString(record.Country), nullableString(record.Location),
		nullableString(record.CatalogNumber), nullableString(record.Barcode),
		nullableInt(record.DiscogsID), nullableInt(record.DiscogsReleaseID),
		nullableString(record.DiscogsThumb),
		nullableString(record.CoverURL), nullableString(record.CoverLocal),
		nullableString(record.CoverURLAuto),
		nullableString(record.AlbumNotes), nullableString(record.PersonalNotes),
		nullableString(record.SortMode), SortKey(record.Artist),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "create_record", "insert record", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "create_record", "read insert id", err)
	}
	record.ID = id
	return record, nil
}

// GetRecord returns one record by ID.
func (s *Store) GetRecord(ctx context.Context, id int64) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM records WHERE id = ?", recordColumns), id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get_record",
			fmt.Sprintf("record %d not found", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "get_record", "query record", err)
	}
	return record, nil
}

// GetRecords returns records for the given IDs, keyed by ID. Missing IDs are
// simply absent from the result.
func (s *Store) GetRecords(ctx context.Context, ids []int64) (map[int64]*Record, error) {
	result := make(map[int64]*Record, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	ctx = ensureContext(ctx)

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM records WHERE id IN (%s)", recordColumns, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "get_records", "query records", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalog", "get_records", "scan record", err)
		}
		result[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "get_records", "iterate records", err)
	}
	return result, nil
}

// UpdateRecord persists all mutable fields of the record.
func (s *Store) UpdateRecord(ctx context.Context, record *Record) error {
	if record == nil || record.ID == 0 {
		return services.Wrap(services.ErrValidation, "catalog", "update_record", "record ID required", nil)
	}
	if strings.TrimSpace(record.Artist) == "" || strings.TrimSpace(record.Title) == "" {
		return services.Wrap(services.ErrValidation, "catalog", "update_record", "artist and title are required", nil)
	}

	record.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
UPDATE records SET
  artist = ?, title = ?, year = ?, label = ?, format = ?, country = ?,
  location = ?, catalog_number = ?, barcode = ?, discogs_id = ?,
  discogs_release_id = ?, discogs_thumb = ?, cover_url = ?, cover_local = ?,
  cover_url_auto = ?, album_notes = ?, personal_notes = ?, sort_mode = ?,
  sort_artist = ?, updated_at = ?
WHERE id = ?`,
		record.Artist, record.Title, nullableInt(int64(record.Year)),
		nullableString(record.Label), nullableString(record.Format),
		nullableString(record.Country), nullableString(record.Location),
		nullableString(record.CatalogNumber), nullableString(record.Barcode),
		nullableInt(record.DiscogsID), nullableInt(record.DiscogsReleaseID),
		nullableString(record.DiscogsThumb),
		nullableString(record.CoverURL), nullableString(record.CoverLocal),
		nullableString(record.CoverURLAuto),
		nullableString(record.AlbumNotes), nullableString(record.PersonalNotes),
		nullableString(record.SortMode), SortKey(record.Artist),
		record.UpdatedAt.Format(time.RFC3339Nano), record.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "update_record", "update record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "update_record", "read rows affected", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "update_record",
			fmt.Sprintf("record %d not found", record.ID), nil)
	}
	return nil
}

// DeleteRecords removes records by ID and returns how many were deleted.
// Tracks and cover embeddings follow via foreign key cascade.
func (s *Store) DeleteRecords(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := s.execWithRetry(ctx,
		fmt.Sprintf("DELETE FROM records WHERE id IN (%s)", strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "catalog", "delete_records", "delete records", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "catalog", "delete_records", "read rows affected", err)
	}
	return affected, nil
}

// ListRecords returns one page of records plus the total count matching the
// search filter.
func (s *Store) ListRecords(ctx context.Context, opts ListOptions) ([]*Record, int, error) {
	ctx = ensureContext(ctx)

	where := ""
	args := []any{}
	if search := strings.TrimSpace(opts.Search); search != "" {
		like := "%" + search + "%"
		where = ` WHERE artist LIKE ? OR title LIKE ? OR label LIKE ? OR catalog_number LIKE ? OR barcode LIKE ?`
		args = append(args, like, like, like, like, like)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM records"+where, args...).Scan(&total); err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "catalog", "list_records", "count records", err)
	}

	query := fmt.Sprintf("SELECT %s FROM records%s ORDER BY %s %s, id ASC",
		recordColumns, where, opts.sortColumn(), opts.sortDirection())
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "catalog", "list_records", "query records", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, services.Wrap(services.ErrTransient, "catalog", "list_records", "scan record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "catalog", "list_records", "iterate records", err)
	}
	return records, total, nil
}

// AllRecords returns a stable snapshot of every record, ordered by ID.
// Batch jobs iterate this snapshot rather than live query results.
func (s *Store) AllRecords(ctx context.Context) ([]*Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM records ORDER BY id ASC", recordColumns))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "all_records", "query records", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalog", "all_records", "scan record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "all_records", "iterate records", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record        Record
		year          sql.NullInt64
		label         sql.NullString
		format        sql.NullString
		country       sql.NullString
		location      sql.NullString
		catalogNumber sql.NullString
		barcode       sql.NullString
		discogsID     sql.NullInt64
		releaseID     sql.NullInt64
		discogsThumb  sql.NullString
		coverURL      sql.NullString
		coverLocal    sql.NullString
		coverURLAuto  sql.NullString
		albumNotes    sql.NullString
		personalNotes sql.NullString
		sortMode      sql.NullString
		createdAt     string
		updatedAt     string
	)

	if err := row.Scan(
		&record.ID, &record.Artist, &record.Title, &year, &label, &format,
		&country, &location, &catalogNumber, &barcode, &discogsID, &releaseID,
		&discogsThumb, &coverURL, &coverLocal, &coverURLAuto, &albumNotes,
		&personalNotes, &sortMode, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	record.Year = int(year.Int64)
	record.Label = label.String
	record.Format = format.String
	record.Country = country.String
	record.Location = location.String
	record.CatalogNumber = catalogNumber.String
	record.Barcode = barcode.String
	record.DiscogsID = discogsID.Int64
	record.DiscogsReleaseID = releaseID.Int64
	record.DiscogsThumb = discogsThumb.String
	record.CoverURL = coverURL.String
	record.CoverLocal = coverLocal.String
	record.CoverURLAuto = coverURLAuto.String
	record.AlbumNotes = albumNotes.String
	record.PersonalNotes = personalNotes.String
	record.SortMode = sortMode.String

	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		record.UpdatedAt = ts
	}
	return &record, nil
}
