package daemon

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"platter/internal/api"
)

// handleDiscogsSearch proxies a release search so the browser never carries
// the API token.
func (s *apiServer) handleDiscogsSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := url.Values{}
	for _, key := range []string{"artist", "release_title", "barcode", "catno", "year", "country", "format", "q"} {
		if value := strings.TrimSpace(r.URL.Query().Get(key)); value != "" {
			params.Set(key, value)
		}
	}
	if len(params) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one search parameter is required")
		return
	}

	results, err := s.daemon.finder.Client().Search(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

// handleRecordDiscogsSearch runs the record's query plan and returns the
// filtered hits, so the owner can pick a release by hand.
func (s *apiServer) handleRecordDiscogsSearch(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := s.daemon.store.GetRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	results, err := s.daemon.finder.SearchCandidates(r.Context(), record)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DiscogsSearchResponse{Results: results})
}

func (s *apiServer) handleDiscogsRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/discogs/release/")
	releaseID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || releaseID <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	release, err := s.daemon.finder.Client().Release(r.Context(), releaseID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, release)
}
