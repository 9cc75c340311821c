package discogs

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"platter/internal/catalog"
	"platter/internal/logging"
)

// resolveCap bounds how many search hits get resolved to full releases per
// query; keeps the happy path under a handful of API calls.
const resolveCap = 8

// BestCover is the outcome of an automatic cover search.
type BestCover struct {
	ReleaseID int64
	CoverURL  string
	ThumbURL  string
	Year      int
	Tracklist []ReleaseTrack
}

// Finder locates the best-matching Discogs release for a catalog record.
type Finder struct {
	client *Client
	logger *slog.Logger
}

// NewFinder builds a Finder.
func NewFinder(client *Client, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finder{client: client, logger: logger}
}

// Client exposes the underlying API client for direct search and release
// lookups.
func (f *Finder) Client() *Client {
	return f.client
}

// countryFor returns the record's country, defaulting to US. Country is a
// hard filter: pressings differ per market and the owner catalogs what they
// actually hold.
func countryFor(record *catalog.Record) string {
	if c := strings.TrimSpace(record.Country); c != "" {
		return c
	}
	return catalog.DefaultCountry
}

func baseParams(record *catalog.Record) url.Values {
	params := url.Values{}
	params.Set("type", "release")
	params.Set("country", countryFor(record))
	params.Set("format", "LP")
	return params
}

// QueryPlan builds search queries from most precise to least precise:
// barcode, catalog number, structured artist/title, then a loose q string.
func QueryPlan(record *catalog.Record) []url.Values {
	artist := strings.TrimSpace(record.Artist)
	title := strings.TrimSpace(record.Title)
	label := strings.TrimSpace(record.Label)
	catno := strings.TrimSpace(record.CatalogNumber)
	barcode := strings.TrimSpace(record.Barcode)
	year := ""
	if record.Year > 0 {
		year = strconv.Itoa(record.Year)
	}

	plan := make([]url.Values, 0, 4)

	if barcode != "" {
		p := baseParams(record)
		p.Set("barcode", barcode)
		if year != "" {
			p.Set("year", year)
		}
		plan = append(plan, p)
	}

	if catno != "" {
		p := baseParams(record)
		p.Set("catno", catno)
		if label != "" {
			p.Set("label", label)
		}
		if artist != "" {
			p.Set("artist", artist)
		}
		if year != "" {
			p.Set("year", year)
		}
		plan = append(plan, p)
	}

	if artist != "" || title != "" {
		p := baseParams(record)
		if artist != "" {
			p.Set("artist", artist)
		}
		if title != "" {
			p.Set("release_title", title)
		}
		if year != "" {
			p.Set("year", year)
		}
		plan = append(plan, p)
	}

	if artist != "" || title != "" {
		p := baseParams(record)
		p.Set("q", strings.TrimSpace(artist+" "+title))
		if year != "" {
			p.Set("year", year)
		}
		plan = append(plan, p)
	}

	return dedupePlan(plan)
}

func dedupePlan(plan []url.Values) []url.Values {
	seen := make(map[string]bool, len(plan))
	out := make([]url.Values, 0, len(plan))
	for _, p := range plan {
		key := p.Encode()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// formatTokens normalizes format descriptors from either the search or the
// release payload shape.
func formatTokensSearch(result SearchResult) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range result.Format {
		tokens[strings.ToLower(f)] = true
	}
	return tokens
}

func formatTokensRelease(release *Release) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range release.Formats {
		if f.Name != "" {
			tokens[strings.ToLower(f.Name)] = true
		}
		for _, d := range f.Descriptions {
			tokens[strings.ToLower(d)] = true
		}
	}
	return tokens
}

func searchResultAllowed(result SearchResult, country string) bool {
	if strings.TrimSpace(result.Country) != country {
		return false
	}
	return formatTokensSearch(result)["lp"]
}

func releaseAllowed(release *Release, country string) bool {
	if strings.TrimSpace(release.Country) != country {
		return false
	}
	return formatTokensRelease(release)["lp"]
}

// scoreRelease ranks a resolved release against the record. Exact artist and
// title matches dominate; year, images, and album format break ties.
func scoreRelease(release *Release, record *catalog.Record) int {
	score := 0
	artist := strings.ToLower(strings.TrimSpace(record.Artist))
	title := strings.ToLower(strings.TrimSpace(record.Title))

	candArtist := ""
	if len(release.Artists) > 0 {
		candArtist = strings.ToLower(strings.TrimSpace(release.Artists[0].Name))
	}
	candTitle := strings.ToLower(strings.TrimSpace(release.Title))

	switch {
	case candArtist != "" && artist != "" && candArtist == artist:
		score += 25
	case candArtist != "" && artist != "" && strings.Contains(candArtist, artist):
		score += 12
	}
	switch {
	case candTitle != "" && title != "" && candTitle == title:
		score += 25
	case candTitle != "" && title != "" && strings.Contains(candTitle, title):
		score += 12
	}
	if record.Year > 0 && release.Year == record.Year {
		score += 10
	}
	if len(release.Images) > 0 {
		score += 8
	}
	if formatTokensRelease(release)["album"] {
		score += 4
	}
	return score
}

// PickImage selects the primary image from a release, falling back to the
// first. Returns full-size and thumbnail URLs.
func PickImage(release *Release) (string, string) {
	if len(release.Images) == 0 {
		return "", ""
	}
	best := release.Images[0]
	for _, img := range release.Images {
		if img.Type == "primary" {
			best = img
			break
		}
	}
	thumb := best.URI150
	if thumb == "" {
		thumb = best.ResourceURL
	}
	return best.URI, thumb
}

// TracklistFor converts a release tracklist into catalog tracks, deriving
// the side from the leading position letter ("B2" puts the track on side B).
func TracklistFor(tracklist []ReleaseTrack, recordID int64) []catalog.Track {
	tracks := make([]catalog.Track, 0, len(tracklist))
	for _, t := range tracklist {
		if strings.TrimSpace(t.Title) == "" {
			continue
		}
		track := catalog.Track{
			RecordID: recordID,
			Position: strings.TrimSpace(t.Position),
			Title:    strings.TrimSpace(t.Title),
			Duration: strings.TrimSpace(t.Duration),
		}
		if track.Position != "" {
			first := track.Position[0]
			if first >= 'A' && first <= 'Z' {
				track.Side = string(first)
			}
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// SearchCandidates runs the record's query plan and returns the first batch
// of hits that pass the country and LP filters, for manual release selection.
// Later, less precise queries only run when earlier ones come up empty.
func (f *Finder) SearchCandidates(ctx context.Context, record *catalog.Record) ([]SearchResult, error) {
	country := countryFor(record)
	for _, params := range QueryPlan(record) {
		results, err := f.client.Search(ctx, params)
		if err != nil {
			return nil, err
		}
		allowed := make([]SearchResult, 0, len(results))
		for _, result := range results {
			if searchResultAllowed(result, country) {
				allowed = append(allowed, result)
			}
		}
		if len(allowed) > 0 {
			return allowed, nil
		}
	}
	return []SearchResult{}, nil
}

// CoverFromRelease applies a caller-chosen release, enforcing the same
// country and LP constraints as the automatic search. Returns (nil, nil)
// when the release does not qualify.
func (f *Finder) CoverFromRelease(ctx context.Context, record *catalog.Record, releaseID int64) (*BestCover, error) {
	release, err := f.client.Release(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !releaseAllowed(release, countryFor(record)) {
		return nil, nil
	}
	return bestFromRelease(release), nil
}

// FindBestCover resolves the best LP release for the record and returns its
// cover art. A pinned release ID short-circuits the search plan. Returns
// (nil, nil) when nothing acceptable is found.
func (f *Finder) FindBestCover(ctx context.Context, record *catalog.Record) (*BestCover, error) {
	country := countryFor(record)
	logger := f.logger.With(logging.Int64(logging.FieldRecordID, record.ID))

	releaseID := record.DiscogsReleaseID
	if releaseID == 0 {
		releaseID = record.DiscogsID
	}
	if releaseID != 0 {
		release, err := f.client.Release(ctx, releaseID)
		if err == nil && releaseAllowed(release, country) {
			return bestFromRelease(release), nil
		}
		if err != nil {
			logger.Debug("pinned release lookup failed, falling back to search",
				logging.Int64("release_id", releaseID), logging.Error(err))
		}
	}

	for _, params := range QueryPlan(record) {
		results, err := f.client.Search(ctx, params)
		if err != nil {
			logger.Debug("discogs search failed", logging.Error(err))
			continue
		}

		allowed := make([]SearchResult, 0, len(results))
		for _, result := range results {
			if searchResultAllowed(result, country) {
				allowed = append(allowed, result)
			}
		}
		if len(allowed) == 0 {
			continue
		}
		if len(allowed) > resolveCap {
			allowed = allowed[:resolveCap]
		}

		var (
			best      *Release
			bestScore = -1
		)
		for _, result := range allowed {
			release, err := f.client.Release(ctx, result.ID)
			if err != nil || !releaseAllowed(release, country) {
				continue
			}
			if score := scoreRelease(release, record); score > bestScore {
				best = release
				bestScore = score
			}
		}
		if best != nil {
			return bestFromRelease(best), nil
		}
	}
	return nil, nil
}

func bestFromRelease(release *Release) *BestCover {
	cover, thumb := PickImage(release)
	return &BestCover{
		ReleaseID: release.ID,
		CoverURL:  cover,
		ThumbURL:  thumb,
		Year:      release.Year,
		Tracklist: release.Tracklist,
	}
}
