package daemon

import (
	"context"
	"net/http"

	"platter/internal/api"
	"platter/internal/catalog"
	"platter/internal/logging"
)

func (s *apiServer) handleImportCSV(w http.ResponseWriter, r *http.Request) {
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

	var lookup catalog.YearLookupFunc
	if s.daemon.finder != nil && r.URL.Query().Get("lookup_year") == "1" {
		lookup = func(ctx context.Context, artist, title string) int {
			best, err := s.daemon.finder.FindBestCover(ctx, &catalog.Record{Artist: artist, Title: title})
			if err != nil || best == nil {
				return 0
			}
			return best.Year
		}
	}

	result, err := s.daemon.store.ImportCSV(r.Context(), file, lookup)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ImportResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}

func (s *apiServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
	if err := s.daemon.store.ExportCSV(r.Context(), w); err != nil {
		s.log().Error("csv export failed", logging.Error(err))
	}
}

func (s *apiServer) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="import-template.csv"`)
	if err := catalog.ImportTemplate(w); err != nil {
		s.log().Error("template write failed", logging.Error(err))
	}
}
