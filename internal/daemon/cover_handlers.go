package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"platter/internal/api"
	"platter/internal/covers"
	"platter/internal/discogs"
	"platter/internal/embedding"
	"platter/internal/logging"
	"platter/internal/rebuild"
)

const maxUploadBytes = 32 << 20

func (s *apiServer) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.runBatchJob(w, r, rebuild.ModeRebuildAll)
}

func (s *apiServer) handleBuildMissing(w http.ResponseWriter, r *http.Request) {
	s.runBatchJob(w, r, rebuild.ModeBuildMissing)
}

// runBatchJob blocks until the job finishes and returns its summary. Partial
// failures still produce a 200; callers inspect the counts.
func (s *apiServer) runBatchJob(w http.ResponseWriter, r *http.Request, mode rebuild.Mode) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.runner.Run(r.Context(), mode)
	if errors.Is(err, rebuild.ErrJobRunning) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RebuildResponse{
		Processed:      summary.Processed,
		SkippedNoImage: summary.SkippedNoImage,
		Errors:         summary.Errors,
	})
}

func (s *apiServer) handleCoverMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil || len(imageData) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty file upload")
		return
	}

	result, err := s.daemon.matcher.Match(r.Context(), imageData)
	switch {
	case errors.Is(err, embedding.ErrDecode):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, embedding.ErrEncoder):
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromMatchResult(result))
}

// handleCoverFetch asks Discogs for the best cover, stores the discovered
// URLs on the record, and refreshes its embedding. An optional JSON body
// with a release_id applies that release instead of searching.
func (s *apiServer) handleCoverFetch(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := s.daemon.store.GetRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var body struct {
		ReleaseID int64 `json:"release_id"`
	}
	// An empty body means automatic selection; decode failures fall through
	// to the same path.
	_ = json.NewDecoder(r.Body).Decode(&body)

	var best *discogs.BestCover
	if body.ReleaseID != 0 {
		best, err = s.daemon.finder.CoverFromRelease(r.Context(), record, body.ReleaseID)
	} else {
		best, err = s.daemon.finder.FindBestCover(r.Context(), record)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if best == nil {
		s.writeJSON(w, http.StatusOK, api.CoverFetchResponse{Found: false})
		return
	}

	before := *record
	record.CoverURLAuto = best.CoverURL
	if best.ThumbURL != "" {
		record.DiscogsThumb = best.ThumbURL
	}
	if record.DiscogsReleaseID == 0 {
		record.DiscogsReleaseID = best.ReleaseID
	}
	if record.Year == 0 && best.Year > 0 {
		record.Year = best.Year
	}
	if err := s.daemon.store.UpdateRecord(r.Context(), record); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.saveTracklistIfEmpty(r.Context(), record.ID, best.Tracklist)
	s.maybeReembed(&before, record)

	s.writeJSON(w, http.StatusOK, api.CoverFetchResponse{
		Found:        true,
		ReleaseID:    best.ReleaseID,
		CoverURLAuto: record.CoverURLAuto,
		DiscogsThumb: record.DiscogsThumb,
	})
}

// saveTracklistIfEmpty stores a discovered tracklist, but never clobbers
// tracks the owner already entered.
func (s *apiServer) saveTracklistIfEmpty(ctx context.Context, recordID int64, tracklist []discogs.ReleaseTrack) {
	if len(tracklist) == 0 {
		return
	}
	existing, err := s.daemon.store.TracksFor(ctx, recordID)
	if err != nil || len(existing) > 0 {
		return
	}
	tracks := discogs.TracklistFor(tracklist, recordID)
	if len(tracks) == 0 {
		return
	}
	if err := s.daemon.store.ReplaceTracks(ctx, recordID, tracks); err != nil {
		s.log().Debug("tracklist save skipped",
			logging.Int64(logging.FieldRecordID, recordID),
			logging.Error(err))
	}
}

// handleCoverUpload stores an uploaded image as the record's local cover.
func (s *apiServer) handleCoverUpload(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := s.daemon.store.GetRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil || len(imageData) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty file upload")
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	name, err := s.daemon.fetcher.Save(id, ext, imageData)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	before := *record
	record.CoverLocal = name
	if err := s.daemon.store.UpdateRecord(r.Context(), record); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.maybeReembed(&before, record)
	s.writeJSON(w, http.StatusOK, api.FromRecord(record))
}

// handleCoverProxy streams the record's resolved cover image so browsers
// never hit provider URLs directly.
func (s *apiServer) handleCoverProxy(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := s.daemon.store.GetRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	ref := covers.Resolve(record.CoverURL, record.CoverLocal, record.CoverURLAuto, record.DiscogsThumb)
	imageData, err := s.daemon.fetcher.Fetch(r.Context(), ref)
	if errors.Is(err, covers.ErrNoImage) {
		s.writeError(w, http.StatusNotFound, "record has no cover image")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(imageData))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(imageData); err != nil {
		s.log().Debug("cover proxy write failed",
			logging.Int64(logging.FieldRecordID, id),
			logging.Error(err))
	}
}
