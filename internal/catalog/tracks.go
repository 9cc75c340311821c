package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"platter/internal/services"
)

// TracksFor returns the tracklist for one record in stored order.
func (s *Store) TracksFor(ctx context.Context, recordID int64) ([]Track, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, record_id, side, position, title, duration FROM tracks WHERE record_id = ? ORDER BY id ASC",
		recordID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "tracks_for", "query tracks", err)
	}
	defer rows.Close()

	tracks := make([]Track, 0)
	for rows.Next() {
		var (
			track    Track
			side     *string
			position *string
			duration *string
		)
		if err := rows.Scan(&track.ID, &track.RecordID, &side, &position, &track.Title, &duration); err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalog", "tracks_for", "scan track", err)
		}
		if side != nil {
			track.Side = *side
		}
		if position != nil {
			track.Position = *position
		}
		if duration != nil {
			track.Duration = *duration
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "tracks_for", "iterate tracks", err)
	}
	return tracks, nil
}

// ReplaceTracks swaps the full tracklist for a record in one transaction.
func (s *Store) ReplaceTracks(ctx context.Context, recordID int64, tracks []Track) error {
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "begin tx", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM records WHERE id = ?", recordID).Scan(&exists); err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "check record", err)
		}
		if exists == 0 {
			return services.Wrap(services.ErrNotFound, "catalog", "replace_tracks",
				fmt.Sprintf("record %d not found", recordID), nil)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE record_id = ?", recordID); err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "clear tracks", err)
		}
		for _, track := range tracks {
			if strings.TrimSpace(track.Title) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tracks (record_id, side, position, title, duration) VALUES (?, ?, ?, ?, ?)",
				recordID, nullableString(track.Side), nullableString(track.Position),
				track.Title, nullableString(track.Duration)); err != nil {
				return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "insert track", err)
			}
		}

		if _, err := tx.ExecContext(ctx, "UPDATE records SET updated_at = ? WHERE id = ?",
			time.Now().UTC().Format(time.RFC3339Nano), recordID); err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "touch record", err)
		}

		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "replace_tracks", "commit tx", err)
		}
		return nil
	})
}
