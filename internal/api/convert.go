package api

import (
	"time"

	"platter/internal/catalog"
	"platter/internal/match"
)

const dateTimeFormat = time.RFC3339Nano

// FromRecord converts a catalog record into its transport payload.
func FromRecord(record *catalog.Record) RecordPayload {
	payload := RecordPayload{
		ID:               record.ID,
		Artist:           record.Artist,
		Title:            record.Title,
		Year:             record.Year,
		Label:            record.Label,
		Format:           record.Format,
		Country:          record.Country,
		Location:         record.Location,
		CatalogNumber:    record.CatalogNumber,
		Barcode:          record.Barcode,
		DiscogsID:        record.DiscogsID,
		DiscogsReleaseID: record.DiscogsReleaseID,
		DiscogsThumb:     record.DiscogsThumb,
		CoverURL:         record.CoverURL,
		CoverLocal:       record.CoverLocal,
		CoverURLAuto:     record.CoverURLAuto,
		AlbumNotes:       record.AlbumNotes,
		PersonalNotes:    record.PersonalNotes,
		SortMode:         record.SortMode,
	}
	if !record.CreatedAt.IsZero() {
		payload.CreatedAt = record.CreatedAt.Format(dateTimeFormat)
	}
	if !record.UpdatedAt.IsZero() {
		payload.UpdatedAt = record.UpdatedAt.Format(dateTimeFormat)
	}
	return payload
}

// ToRecord converts a transport payload into a catalog record.
func ToRecord(payload RecordPayload) *catalog.Record {
	return &catalog.Record{
		ID:               payload.ID,
		Artist:           payload.Artist,
		Title:            payload.Title,
		Year:             payload.Year,
		Label:            payload.Label,
		Format:           payload.Format,
		Country:          payload.Country,
		Location:         payload.Location,
		CatalogNumber:    payload.CatalogNumber,
		Barcode:          payload.Barcode,
		DiscogsID:        payload.DiscogsID,
		DiscogsReleaseID: payload.DiscogsReleaseID,
		DiscogsThumb:     payload.DiscogsThumb,
		CoverURL:         payload.CoverURL,
		CoverLocal:       payload.CoverLocal,
		CoverURLAuto:     payload.CoverURLAuto,
		AlbumNotes:       payload.AlbumNotes,
		PersonalNotes:    payload.PersonalNotes,
		SortMode:         payload.SortMode,
	}
}

// FromTrack converts a catalog track into its transport payload.
func FromTrack(track catalog.Track) TrackPayload {
	return TrackPayload{
		ID:       track.ID,
		RecordID: track.RecordID,
		Side:     track.Side,
		Position: track.Position,
		Title:    track.Title,
		Duration: track.Duration,
	}
}

// ToTrack converts a transport payload into a catalog track.
func ToTrack(payload TrackPayload) catalog.Track {
	return catalog.Track{
		ID:       payload.ID,
		RecordID: payload.RecordID,
		Side:     payload.Side,
		Position: payload.Position,
		Title:    payload.Title,
		Duration: payload.Duration,
	}
}

// FromMatchResult converts a match result into the transport shape the
// endpoint serves: the confident shape when the policy trusts the top hit,
// the candidate-list shape otherwise.
func FromMatchResult(result *match.Result) any {
	if result.Confident {
		return MatchConfidentResponse{Match: result.BestID, Score: result.BestScore}
	}
	resp := MatchListResponse{
		Confident:  false,
		Candidates: make([]MatchCandidate, 0, len(result.Candidates)),
	}
	if len(result.Candidates) > 0 {
		resp.Best = &MatchBest{
			ID:          result.BestID,
			Score:       result.BestScore,
			GapToSecond: result.GapToSecond,
		}
	}
	for _, candidate := range result.Candidates {
		resp.Candidates = append(resp.Candidates, MatchCandidate{
			ID:     candidate.RecordID,
			Artist: candidate.Artist,
			Title:  candidate.Title,
			Score:  candidate.Score,
		})
	}
	return resp
}
