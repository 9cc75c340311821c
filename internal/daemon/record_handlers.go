package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"platter/internal/api"
	"platter/internal/catalog"
	"platter/internal/logging"
)

func (s *apiServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecords(w, r)
	case http.MethodPost:
		s.createRecord(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := catalog.ListOptions{
		Search:  query.Get("q"),
		SortKey: query.Get("sort"),
		SortDir: query.Get("dir"),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}

	records, total, err := s.daemon.store.ListRecords(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := api.RecordListResponse{Items: make([]api.RecordPayload, 0, len(records)), Total: total}
	for _, record := range records {
		resp.Items = append(resp.Items, api.FromRecord(record))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) createRecord(w http.ResponseWriter, r *http.Request) {
	var payload api.RecordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	incoming := api.ToRecord(payload)
	s.deriveYearFromDiscogs(r.Context(), incoming)
	record, err := s.daemon.store.CreateRecord(r.Context(), incoming)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.maybeReembed(nil, record)
	s.writeJSON(w, http.StatusCreated, api.FromRecord(record))
}

// deriveYearFromDiscogs backfills a missing year from a known release ID.
// Best effort: lookup failures leave the year unset.
func (s *apiServer) deriveYearFromDiscogs(ctx context.Context, record *catalog.Record) {
	if record.Year != 0 || !s.daemon.finder.Client().Configured() {
		return
	}
	releaseID := record.DiscogsReleaseID
	if releaseID == 0 {
		releaseID = record.DiscogsID
	}
	if releaseID == 0 {
		return
	}
	release, err := s.daemon.finder.Client().Release(ctx, releaseID)
	if err != nil {
		s.log().Debug("year derivation skipped",
			logging.Int64("release_id", releaseID),
			logging.Error(err))
		return
	}
	if release.Year > 0 {
		record.Year = release.Year
	}
}

// handleRecordSubtree routes /api/records/{id} and its nested resources.
func (s *apiServer) handleRecordSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	if len(parts) == 1 {
		s.handleRecordByID(w, r, id)
		return
	}
	switch parts[1] {
	case "tracks":
		s.handleTracks(w, r, id)
	case "discogs/search":
		s.handleRecordDiscogsSearch(w, r, id)
	case "cover/fetch":
		s.handleCoverFetch(w, r, id)
	case "cover/upload":
		s.handleCoverUpload(w, r, id)
	case "cover/proxy":
		s.handleCoverProxy(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleRecordByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		record, err := s.daemon.store.GetRecord(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromRecord(record))
	case http.MethodPut, http.MethodPatch:
		before, err := s.daemon.store.GetRecord(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		// Decoding into the existing record's payload gives merge semantics:
		// fields absent from the body keep their stored values.
		payload := api.FromRecord(before)
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		record := api.ToRecord(payload)
		record.ID = id
		if err := s.daemon.store.UpdateRecord(r.Context(), record); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.maybeReembed(before, record)
		s.writeJSON(w, http.StatusOK, api.FromRecord(record))
	case http.MethodDelete:
		deleted, err := s.daemon.store.DeleteRecords(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: deleted})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTracks(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		tracks, err := s.daemon.store.TracksFor(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		payloads := make([]api.TrackPayload, 0, len(tracks))
		for _, track := range tracks {
			payloads = append(payloads, api.FromTrack(track))
		}
		s.writeJSON(w, http.StatusOK, payloads)
	case http.MethodPut:
		var payloads []api.TrackPayload
		if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		tracks := make([]catalog.Track, 0, len(payloads))
		for _, payload := range payloads {
			tracks = append(tracks, api.ToTrack(payload))
		}
		if err := s.daemon.store.ReplaceTracks(r.Context(), id, tracks); err != nil {
			s.writeServiceError(w, err)
			return
		}
		saved, err := s.daemon.store.TracksFor(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		out := make([]api.TrackPayload, 0, len(saved))
		for _, track := range saved {
			out = append(out, api.FromTrack(track))
		}
		s.writeJSON(w, http.StatusOK, out)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	deleted, err := s.daemon.store.DeleteRecords(r.Context(), body.IDs...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: deleted})
}

// maybeReembed refreshes a record's embedding in the background after its
// cover fields change. Failures are logged, never surfaced to the request.
func (s *apiServer) maybeReembed(before, after *catalog.Record) {
	if before != nil && !catalog.CoverFieldsChanged(before, after) {
		return
	}
	record := *after
	go func() {
		if err := s.daemon.runner.RunOne(context.Background(), &record); err != nil {
			s.log().Debug("background re-embed skipped",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.Error(err))
		}
	}()
}
