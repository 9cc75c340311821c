package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"platter/internal/api"
	"platter/internal/discogs"
	"platter/internal/testsupport"
)

// newTestDaemon brings up a daemon with a stub encoder sidecar and returns a
// client pointed at its API.
func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, string) {
	t.Helper()

	encoderSrv := httptest.NewServer(stubEncoderHandler(t))
	t.Cleanup(encoderSrv.Close)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{
		testsupport.WithEncoderURL(encoderSrv.URL),
	}, opts...)...)

	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	return d, "http://" + d.apiServer.addr()
}

// stubEncoderHandler serves deterministic vectors keyed by image brightness,
// so different cover colors embed to different directions.
func stubEncoderHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"model_version": "clip-vit-b-32/1"})
	})
	mux.HandleFunc("/embed/image", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		// A crude but stable hash of the payload spreads distinct images
		// across distinct unit vectors.
		var sum int
		for _, c := range req.Image {
			sum += int(c)
		}
		angle := float32(sum%7) - 3
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vector":        []float32{1, angle, angle * angle},
			"model_version": "clip-vit-b-32/1",
		})
	})
	return mux
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthAndStatus(t *testing.T) {
	_, base := newTestDaemon(t)

	resp, err := http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	var health api.HealthResponse
	decodeBody(t, resp, &health)
	if health.Status != "ok" {
		t.Fatalf("unexpected health: %+v", health)
	}

	resp, err = http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status api.StatusResponse
	decodeBody(t, resp, &status)
	if status.ModelVersion != "clip-vit-b-32/1" || !status.EncoderHealthy {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRecordCRUDOverHTTP(t *testing.T) {
	_, base := newTestDaemon(t)

	resp := postJSON(t, base+"/api/records", api.RecordPayload{
		Artist: "Kraftwerk", Title: "Trans-Europe Express", Year: 1977,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	var created api.RecordPayload
	decodeBody(t, resp, &created)
	if created.ID == 0 || created.Country != "US" {
		t.Fatalf("unexpected created record: %+v", created)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/records/%d", base, created.ID))
	if err != nil {
		t.Fatalf("GET record: %v", err)
	}
	var fetched api.RecordPayload
	decodeBody(t, resp, &fetched)
	if fetched.Title != "Trans-Europe Express" {
		t.Fatalf("unexpected record: %+v", fetched)
	}

	resp, err = http.Get(base + "/api/records?q=kraftwerk")
	if err != nil {
		t.Fatalf("GET records: %v", err)
	}
	var list api.RecordListResponse
	decodeBody(t, resp, &list)
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/records/%d", base, created.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE record: %v", err)
	}
	var deleted api.DeleteResponse
	decodeBody(t, resp, &deleted)
	if deleted.Deleted != 1 {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}
}

func TestRebuildEndpointsReturnSummary(t *testing.T) {
	d, base := newTestDaemon(t)

	withCover := testsupport.NewRecord(t, d.store, "Artist", "Covered")
	name := fmt.Sprintf("record-%d.png", withCover.ID)
	testsupport.WriteCoverFile(t, d.cfg.Paths.CoversDir, name,
		testsupport.PNGBytes(t, color.White))
	withCover.CoverLocal = name
	if err := d.store.UpdateRecord(context.Background(), withCover); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	testsupport.NewRecord(t, d.store, "Artist", "Bare")

	resp := postJSON(t, base+"/api/cover-embeddings/rebuild", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status %d", resp.StatusCode)
	}
	var summary api.RebuildResponse
	decodeBody(t, resp, &summary)
	if summary.Processed != 1 || summary.SkippedNoImage != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Nothing is missing now, so build-missing processes zero.
	resp = postJSON(t, base+"/api/cover-embeddings/build-missing", nil)
	decodeBody(t, resp, &summary)
	if summary.Processed != 0 {
		t.Fatalf("expected idempotent build-missing, got %+v", summary)
	}
}

func coverMatchRequest(t *testing.T, base string, image []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "query.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = writer.Close()

	resp, err := http.Post(base+"/api/cover-match", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST cover-match: %v", err)
	}
	return resp
}

func TestCoverMatchEmptyIndexReturnsCandidateShape(t *testing.T) {
	_, base := newTestDaemon(t)

	resp := coverMatchRequest(t, base, testsupport.PNGBytes(t, color.White))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cover-match status %d", resp.StatusCode)
	}
	var result api.MatchListResponse
	decodeBody(t, resp, &result)
	if result.Confident || result.Best != nil || len(result.Candidates) != 0 {
		t.Fatalf("expected empty candidate shape: %+v", result)
	}
}

func TestCoverMatchSelfQueryIsConfident(t *testing.T) {
	d, base := newTestDaemon(t, testsupport.WithMatcherThresholds(0.80, 0.10, 5))

	image := testsupport.PNGBytes(t, color.White)
	record := testsupport.NewRecord(t, d.store, "Artist", "Album")
	name := fmt.Sprintf("record-%d.png", record.ID)
	testsupport.WriteCoverFile(t, d.cfg.Paths.CoversDir, name, image)
	record.CoverLocal = name
	if err := d.store.UpdateRecord(context.Background(), record); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	resp := postJSON(t, base+"/api/cover-embeddings/rebuild", nil)
	var summary api.RebuildResponse
	decodeBody(t, resp, &summary)
	if summary.Processed != 1 {
		t.Fatalf("rebuild summary: %+v", summary)
	}

	// Probing with the exact stored bytes must return that record with top
	// score; a single candidate makes the gap equal the score.
	resp = coverMatchRequest(t, base, image)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var confident api.MatchConfidentResponse
	if err := json.Unmarshal(body, &confident); err != nil {
		t.Fatalf("decode confident shape: %v (%s)", err, body)
	}
	if confident.Match != record.ID || confident.Score < 0.99 {
		t.Fatalf("unexpected confident response: %+v", confident)
	}
	if strings.Contains(string(body), "candidates") {
		t.Fatalf("confident shape must not carry candidates: %s", body)
	}
}

func TestCoverMatchRejectsBadUpload(t *testing.T) {
	_, base := newTestDaemon(t)

	resp := coverMatchRequest(t, base, []byte("definitely not an image"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable upload, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestImportExportEndpoints(t *testing.T) {
	_, base := newTestDaemon(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "records.csv")
	_, _ = part.Write([]byte("artist,title,year\nNeu!,Neu! 75,1975\n"))
	_ = writer.Close()

	resp, err := http.Post(base+"/api/import/csv", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST import: %v", err)
	}
	var imported api.ImportResponse
	decodeBody(t, resp, &imported)
	if imported.Imported != 1 {
		t.Fatalf("unexpected import response: %+v", imported)
	}

	resp, err = http.Get(base + "/api/records-export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), "Neu!") {
		t.Fatalf("export missing record:\n%s", data)
	}

	resp, err = http.Get(base + "/api/meta/import-template")
	if err != nil {
		t.Fatalf("GET template: %v", err)
	}
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasPrefix(string(data), "artist,title,year") {
		t.Fatalf("unexpected template:\n%s", data)
	}
}

func TestRecordUpdateMergesPartialBody(t *testing.T) {
	_, base := newTestDaemon(t)

	resp := postJSON(t, base+"/api/records", api.RecordPayload{
		Artist: "Brian Eno", Title: "Another Green World", Year: 1975, Label: "Island",
	})
	var created api.RecordPayload
	decodeBody(t, resp, &created)

	patch := strings.NewReader(`{"location":"A3"}`)
	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/records/%d", base, created.ID), patch)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH record: %v", err)
	}
	var updated api.RecordPayload
	decodeBody(t, resp, &updated)
	if updated.Location != "A3" {
		t.Fatalf("location not applied: %+v", updated)
	}
	if updated.Artist != "Brian Eno" || updated.Title != "Another Green World" ||
		updated.Year != 1975 || updated.Label != "Island" {
		t.Fatalf("partial update must keep unmentioned fields: %+v", updated)
	}
}

// newDiscogsStub serves a canned Discogs API for daemon-level tests.
func newDiscogsStub(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRecordDiscogsSearchReturnsFilteredHits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []discogs.SearchResult{
			{ID: 1, Title: "Low", Country: "UK", Format: []string{"LP"}},
			{ID: 2, Title: "Low", Country: "US", Format: []string{"Vinyl", "LP"}},
		}})
	})
	stub := newDiscogsStub(t, mux)
	_, base := newTestDaemon(t, testsupport.WithDiscogs(stub, "test-token"))

	resp := postJSON(t, base+"/api/records", api.RecordPayload{Artist: "David Bowie", Title: "Low"})
	var created api.RecordPayload
	decodeBody(t, resp, &created)

	resp, err := http.Get(fmt.Sprintf("%s/api/records/%d/discogs/search", base, created.ID))
	if err != nil {
		t.Fatalf("GET discogs search: %v", err)
	}
	var search api.DiscogsSearchResponse
	decodeBody(t, resp, &search)
	if len(search.Results) != 1 || search.Results[0].ID != 2 {
		t.Fatalf("expected only the US LP hit, got %+v", search.Results)
	}
}

func TestCoverFetchAppliesChosenRelease(t *testing.T) {
	var searchCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []discogs.SearchResult{}})
	})
	stub := newDiscogsStub(t, mux)
	mux.HandleFunc("/covers/low.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testsupport.PNGBytes(t, color.White))
	})
	mux.HandleFunc("/releases/42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(discogs.Release{
			ID:      42,
			Title:   "Low",
			Year:    1977,
			Country: "US",
			Formats: []discogs.ReleaseFormat{{Name: "Vinyl", Descriptions: []string{"LP"}}},
			Images: []discogs.Image{{
				Type: "primary", URI: stub + "/covers/low.png", URI150: stub + "/covers/low.png",
			}},
		})
	})
	_, base := newTestDaemon(t, testsupport.WithDiscogs(stub, "test-token"))

	resp := postJSON(t, base+"/api/records", api.RecordPayload{Artist: "David Bowie", Title: "Low"})
	var created api.RecordPayload
	decodeBody(t, resp, &created)

	resp = postJSON(t, fmt.Sprintf("%s/api/records/%d/cover/fetch", base, created.ID),
		map[string]int64{"release_id": 42})
	var fetch api.CoverFetchResponse
	decodeBody(t, resp, &fetch)
	if !fetch.Found || fetch.ReleaseID != 42 {
		t.Fatalf("unexpected fetch response: %+v", fetch)
	}
	if searchCalls != 0 {
		t.Fatal("a chosen release must skip the search")
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/records/%d", base, created.ID))
	if err != nil {
		t.Fatalf("GET record: %v", err)
	}
	var after api.RecordPayload
	decodeBody(t, resp, &after)
	if after.DiscogsReleaseID != 42 || after.CoverURLAuto == "" {
		t.Fatalf("chosen release not applied: %+v", after)
	}
}

func TestCreateRecordDerivesYearFromRelease(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(discogs.Release{ID: 7, Title: "Future Days", Year: 1973})
	})
	stub := newDiscogsStub(t, mux)
	_, base := newTestDaemon(t, testsupport.WithDiscogs(stub, "test-token"))

	resp := postJSON(t, base+"/api/records", api.RecordPayload{
		Artist: "Can", Title: "Future Days", DiscogsReleaseID: 7,
	})
	var created api.RecordPayload
	decodeBody(t, resp, &created)
	if created.Year != 1973 {
		t.Fatalf("year should come from the release, got %+v", created)
	}
}

func TestSecondDaemonInstanceRefused(t *testing.T) {
	d, _ := newTestDaemon(t)

	other, err := New(d.cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()

	if err := other.Start(context.Background()); err == nil {
		t.Fatal("second instance should fail to acquire the lock")
	}
}

