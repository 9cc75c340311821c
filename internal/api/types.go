// Package api defines the transport payloads served by the daemon's HTTP
// interface and consumed by the CLI client.
package api

import "platter/internal/discogs"

// RecordPayload describes a catalog record in a transport-friendly format.
type RecordPayload struct {
	ID               int64  `json:"id"`
	Artist           string `json:"artist"`
	Title            string `json:"title"`
	Year             int    `json:"year,omitempty"`
	Label            string `json:"label,omitempty"`
	Format           string `json:"format,omitempty"`
	Country          string `json:"country,omitempty"`
	Location         string `json:"location,omitempty"`
	CatalogNumber    string `json:"catalog_number,omitempty"`
	Barcode          string `json:"barcode,omitempty"`
	DiscogsID        int64  `json:"discogs_id,omitempty"`
	DiscogsReleaseID int64  `json:"discogs_release_id,omitempty"`
	DiscogsThumb     string `json:"discogs_thumb,omitempty"`
	CoverURL         string `json:"cover_url,omitempty"`
	CoverLocal       string `json:"cover_local,omitempty"`
	CoverURLAuto     string `json:"cover_url_auto,omitempty"`
	AlbumNotes       string `json:"album_notes,omitempty"`
	PersonalNotes    string `json:"personal_notes,omitempty"`
	SortMode         string `json:"sort_mode,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// TrackPayload describes one tracklist entry.
type TrackPayload struct {
	ID       int64  `json:"id,omitempty"`
	RecordID int64  `json:"record_id,omitempty"`
	Side     string `json:"side,omitempty"`
	Position string `json:"position,omitempty"`
	Title    string `json:"title"`
	Duration string `json:"duration,omitempty"`
}

// RecordListResponse is one page of records plus the filtered total.
type RecordListResponse struct {
	Items []RecordPayload `json:"items"`
	Total int             `json:"total"`
}

// DeleteResponse reports how many records a delete removed.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ImportResponse summarizes a CSV import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped,omitempty"`
}

// RebuildResponse summarizes a batch embedding job.
type RebuildResponse struct {
	Processed      int `json:"processed"`
	SkippedNoImage int `json:"skipped_no_image"`
	Errors         int `json:"errors"`
}

// MatchConfidentResponse is served when the match policy trusts the top hit.
type MatchConfidentResponse struct {
	Match int64   `json:"match"`
	Score float64 `json:"score"`
}

// MatchBest identifies the top-scoring record in an ambiguous match.
type MatchBest struct {
	ID          int64   `json:"id"`
	Score       float64 `json:"score"`
	GapToSecond float64 `json:"gap_to_second"`
}

// MatchCandidate is one ranked disambiguation entry.
type MatchCandidate struct {
	ID     int64   `json:"id"`
	Artist string  `json:"artist"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// MatchListResponse is served when the match needs human disambiguation.
type MatchListResponse struct {
	Best       *MatchBest       `json:"best"`
	Confident  bool             `json:"confident"`
	Candidates []MatchCandidate `json:"candidates"`
}

// DiscogsSearchResponse lists filtered release candidates for one record.
type DiscogsSearchResponse struct {
	Results []discogs.SearchResult `json:"results"`
}

// CoverFetchResponse reports the outcome of an automatic cover search.
type CoverFetchResponse struct {
	Found        bool   `json:"found"`
	ReleaseID    int64  `json:"release_id,omitempty"`
	CoverURLAuto string `json:"cover_url_auto,omitempty"`
	DiscogsThumb string `json:"discogs_thumb,omitempty"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse summarizes daemon state for the CLI.
type StatusResponse struct {
	Records           int    `json:"records"`
	Embeddings        int    `json:"embeddings"`
	EmbeddingsCurrent int    `json:"embeddings_current"`
	ModelVersion      string `json:"model_version"`
	EncoderHealthy    bool   `json:"encoder_healthy"`
	JobRunning        bool   `json:"job_running"`
}
