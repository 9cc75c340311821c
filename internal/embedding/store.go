package embedding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Embedding is one stored cover vector keyed by record ID.
type Embedding struct {
	RecordID          int64
	Vector            Vector
	ModelVersion      string
	SourceFingerprint string
	GeneratedAt       time.Time
}

// Store persists cover embeddings in the catalog database. At most one
// embedding exists per record; Put overwrites atomically.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the embedding for a record, or (nil, nil) when none is stored.
func (s *Store) Get(ctx context.Context, recordID int64) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT record_id, vector, dim, model_version, source_fingerprint, generated_at FROM cover_embeddings WHERE record_id = ?",
		recordID)
	emb, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding %d: %w", recordID, err)
	}
	return emb, nil
}

// Put stores or replaces the embedding for a record.
func (s *Store) Put(ctx context.Context, emb *Embedding) error {
	if emb == nil || emb.RecordID == 0 {
		return fmt.Errorf("%w: embedding record ID required", ErrIndexWrite)
	}
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for record %d", ErrIndexWrite, emb.RecordID)
	}
	generatedAt := emb.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO cover_embeddings (record_id, vector, dim, model_version, source_fingerprint, generated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(record_id) DO UPDATE SET
  vector = excluded.vector,
  dim = excluded.dim,
  model_version = excluded.model_version,
  source_fingerprint = excluded.source_fingerprint,
  generated_at = excluded.generated_at`,
		emb.RecordID, encodeVector(emb.Vector), len(emb.Vector),
		emb.ModelVersion, emb.SourceFingerprint,
		generatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: record %d: %v", ErrIndexWrite, emb.RecordID, err)
	}
	return nil
}

// Delete removes the embedding for a record. Deleting a missing embedding is
// not an error.
func (s *Store) Delete(ctx context.Context, recordID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cover_embeddings WHERE record_id = ?", recordID); err != nil {
		return fmt.Errorf("%w: delete record %d: %v", ErrIndexWrite, recordID, err)
	}
	return nil
}

// All returns every stored embedding ordered by record ID.
func (s *Store) All(ctx context.Context) ([]*Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, vector, dim, model_version, source_fingerprint, generated_at FROM cover_embeddings ORDER BY record_id ASC")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	embeddings := make([]*Embedding, 0)
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM cover_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// CountCurrent returns the number of stored embeddings generated with the
// given model version. Embeddings from other versions still exist and remain
// matchable, but are due for a rebuild.
func (s *Store) CountCurrent(ctx context.Context, modelVersion string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM cover_embeddings WHERE model_version = ?", modelVersion).Scan(&count); err != nil {
		return 0, fmt.Errorf("count current embeddings: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(row rowScanner) (*Embedding, error) {
	var (
		emb         Embedding
		blob        []byte
		dim         int
		generatedAt string
	)
	if err := row.Scan(&emb.RecordID, &blob, &dim, &emb.ModelVersion, &emb.SourceFingerprint, &generatedAt); err != nil {
		return nil, err
	}
	vector, err := decodeVector(blob, dim)
	if err != nil {
		return nil, err
	}
	emb.Vector = vector
	if ts, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
		emb.GeneratedAt = ts
	}
	return &emb, nil
}
