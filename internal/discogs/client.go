// Package discogs talks to the Discogs API to find release metadata and
// cover art for catalog records.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"platter/internal/config"
	"platter/internal/services"
)

// SearchResult is one entry from /database/search.
type SearchResult struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	Country    string   `json:"country"`
	Label      []string `json:"label"`
	Format     []string `json:"format"`
	CatNo      string   `json:"catno"`
	Thumb      string   `json:"thumb"`
	CoverImage string   `json:"cover_image"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Image is one release image.
type Image struct {
	Type        string `json:"type"`
	URI         string `json:"uri"`
	URI150      string `json:"uri150"`
	ResourceURL string `json:"resource_url"`
}

// ReleaseFormat is one format block on a release.
type ReleaseFormat struct {
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
}

// ReleaseTrack is one tracklist entry on a release.
type ReleaseTrack struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// ReleaseArtist is one credited artist on a release.
type ReleaseArtist struct {
	Name string `json:"name"`
}

// Release is the /releases/{id} payload, reduced to the fields the catalog
// uses.
type Release struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Year      int             `json:"year"`
	Country   string          `json:"country"`
	Artists   []ReleaseArtist `json:"artists"`
	Formats   []ReleaseFormat `json:"formats"`
	Images    []Image         `json:"images"`
	Tracklist []ReleaseTrack  `json:"tracklist"`
}

// Client is a Discogs API client. All requests carry the configured token
// and user agent; Discogs rejects anonymous traffic aggressively.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds a Discogs client from configuration.
func NewClient(cfg config.Discogs, opts ...ClientOption) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether a token is available.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.token) != ""
}

// Search runs /database/search with the given query parameters.
func (c *Client) Search(ctx context.Context, params url.Values) ([]SearchResult, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "discogs", "search",
			"discogs token is not configured", nil)
	}
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if query.Get("type") == "" {
		query.Set("type", "release")
	}
	if query.Get("per_page") == "" {
		query.Set("per_page", "50")
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/database/search", query, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Release fetches one full release by ID.
func (c *Client) Release(ctx context.Context, releaseID int64) (*Release, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "discogs", "release",
			"discogs token is not configured", nil)
	}
	var release Release
	if err := c.getJSON(ctx, fmt.Sprintf("/releases/%d", releaseID), nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "discogs", "request", "build request", err)
	}
	req.Header.Set("Authorization", "Discogs token="+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "discogs", "request", "call discogs", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "discogs", "request",
			fmt.Sprintf("discogs returned 404 for %s", path), nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "discogs", "request",
			fmt.Sprintf("discogs rejected credentials with status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrUnavailable, "discogs", "request",
			"discogs rate limit exceeded", nil)
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrUnavailable, "discogs", "request",
			fmt.Sprintf("discogs returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "discogs", "request", "decode response", err)
	}
	return nil
}
