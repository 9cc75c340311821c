package covers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxImageBytes = 32 << 20

// Fetcher retrieves cover image bytes for resolved references. Local
// references are read from the covers directory; URL references are fetched
// over HTTP.
type Fetcher struct {
	coversDir  string
	httpClient *http.Client
	userAgent  string
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for URL references.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent on image requests.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if strings.TrimSpace(ua) != "" {
			f.userAgent = ua
		}
	}
}

// NewFetcher builds a Fetcher rooted at the configured covers directory.
func NewFetcher(coversDir string, opts ...FetcherOption) *Fetcher {
	fetcher := &Fetcher{
		coversDir:  coversDir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "Platter/dev",
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher
}

// Fetch returns the image bytes for a resolved reference. A none reference
// yields ErrNoImage; any retrieval failure yields an error wrapping ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, ref Reference) ([]byte, error) {
	if ref.IsNone() {
		return nil, ErrNoImage
	}
	switch ref.Source {
	case SourceLocal:
		return f.fetchLocal(ref.Value)
	case SourceManual, SourceAuto, SourceThumb:
		return f.fetchURL(ctx, ref.Value)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrFetch, ref.Source)
	}
}

func (f *Fetcher) fetchLocal(name string) ([]byte, error) {
	// Local references are stored as bare filenames; reject anything that
	// escapes the covers directory.
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || filepath.IsAbs(cleaned) || strings.Contains(cleaned, "..") {
		return nil, fmt.Errorf("%w: invalid local reference %q", ErrFetch, name)
	}
	path := filepath.Join(f.coversDir, cleaned)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, cleaned, err)
	}
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetch, resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrFetch, maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", ErrFetch, rawURL)
	}
	return data, nil
}

// Save stores uploaded image data in the covers directory under a stable name
// for the record and returns the stored filename.
func (f *Fetcher) Save(recordID int64, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(f.coversDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create covers dir: %v", ErrFetch, err)
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
	default:
		ext = "jpg"
	}
	name := fmt.Sprintf("record-%d.%s", recordID, ext)
	tmp := filepath.Join(f.coversDir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write cover: %v", ErrFetch, err)
	}
	if err := os.Rename(tmp, filepath.Join(f.coversDir, name)); err != nil {
		return "", fmt.Errorf("%w: finalize cover: %v", ErrFetch, err)
	}
	return name, nil
}
