package catalog

import (
	"strings"
	"time"
)

// Record represents one vinyl album in the collection.
type Record struct {
	ID               int64
	Artist           string
	Title            string
	Year             int
	Label            string
	Format           string
	Country          string
	Location         string
	CatalogNumber    string
	Barcode          string
	DiscogsID        int64
	DiscogsReleaseID int64
	DiscogsThumb     string
	CoverURL         string
	CoverLocal       string
	CoverURLAuto     string
	AlbumNotes       string
	PersonalNotes    string
	SortMode         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Track represents one tracklist entry belonging to a record.
type Track struct {
	ID       int64
	RecordID int64
	Side     string
	Position string
	Title    string
	Duration string
}

// ListOptions controls record listing.
type ListOptions struct {
	Search  string
	SortKey string
	SortDir string
	Limit   int
	Offset  int
}

// Record defaults applied on create/import when the fields are blank.
const (
	DefaultCountry = "US"
	DefaultFormat  = "LP"
)

var allowedSortKeys = map[string]string{
	"artist":     "sort_artist",
	"title":      "title",
	"year":       "year",
	"label":      "label",
	"country":    "country",
	"location":   "location",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (o ListOptions) sortColumn() string {
	if col, ok := allowedSortKeys[strings.ToLower(strings.TrimSpace(o.SortKey))]; ok {
		return col
	}
	return "sort_artist"
}

func (o ListOptions) sortDirection() string {
	if strings.EqualFold(strings.TrimSpace(o.SortDir), "desc") {
		return "DESC"
	}
	return "ASC"
}

// ApplyDefaults fills country and format when blank, matching manual entry
// behavior of the catalog UI.
func (r *Record) ApplyDefaults() {
	if strings.TrimSpace(r.Country) == "" {
		r.Country = DefaultCountry
	}
	if strings.TrimSpace(r.Format) == "" {
		r.Format = DefaultFormat
	}
}

// CoverFieldsChanged reports whether the cover-bearing fields differ between
// two versions of a record. Used to re-embed after cover edits.
func CoverFieldsChanged(before, after *Record) bool {
	if before == nil || after == nil {
		return before != after
	}
	return before.CoverURL != after.CoverURL ||
		before.CoverLocal != after.CoverLocal ||
		before.CoverURLAuto != after.CoverURLAuto ||
		before.DiscogsThumb != after.DiscogsThumb
}
