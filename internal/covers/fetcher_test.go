package covers_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"platter/internal/covers"
	"platter/internal/testsupport"
)

func TestFetchNoneReturnsErrNoImage(t *testing.T) {
	fetcher := covers.NewFetcher(t.TempDir())

	_, err := fetcher.Fetch(context.Background(), covers.Resolve("", "", "", ""))
	if !errors.Is(err, covers.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	data := testsupport.PNGBytes(t, color.White)
	testsupport.WriteCoverFile(t, dir, "record-1.png", data)
	fetcher := covers.NewFetcher(dir)

	got, err := fetcher.Fetch(context.Background(), covers.Resolve("", "record-1.png", "", ""))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("fetched bytes differ from stored file")
	}
}

func TestFetchLocalRejectsTraversal(t *testing.T) {
	fetcher := covers.NewFetcher(t.TempDir())

	_, err := fetcher.Fetch(context.Background(), covers.Resolve("", "../etc/passwd", "", ""))
	if !errors.Is(err, covers.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchURL(t *testing.T) {
	data := testsupport.PNGBytes(t, color.Black)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent header")
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	fetcher := covers.NewFetcher(t.TempDir(), covers.WithHTTPClient(srv.Client()))
	got, err := fetcher.Fetch(context.Background(), covers.Resolve(srv.URL+"/cover.png", "", "", ""))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("fetched bytes differ from served image")
	}
}

func TestFetchURLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher := covers.NewFetcher(t.TempDir(), covers.WithHTTPClient(srv.Client()))
	_, err := fetcher.Fetch(context.Background(), covers.Resolve(srv.URL+"/missing.jpg", "", "", ""))
	if !errors.Is(err, covers.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestSaveStoresUnderStableName(t *testing.T) {
	dir := t.TempDir()
	fetcher := covers.NewFetcher(dir)
	data := testsupport.PNGBytes(t, color.White)

	name, err := fetcher.Save(42, "PNG", data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "record-42.png" {
		t.Fatalf("unexpected stored name %q", name)
	}

	got, err := fetcher.Fetch(context.Background(), covers.Resolve("", name, "", ""))
	if err != nil {
		t.Fatalf("Fetch after save: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("stored bytes differ")
	}
}
