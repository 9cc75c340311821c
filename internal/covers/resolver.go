// Package covers resolves which cover image represents a record and fetches
// its bytes. Resolution is a pure priority decision over the record's cover
// fields; fetching is the only part that touches the network or disk.
package covers

import "strings"

// Source identifies where a resolved cover image comes from.
type Source string

const (
	// SourceManual is an owner-supplied image URL. Highest priority.
	SourceManual Source = "manual"
	// SourceLocal is an uploaded file stored under the covers directory.
	SourceLocal Source = "local"
	// SourceAuto is a full-size image discovered automatically.
	SourceAuto Source = "auto"
	// SourceThumb is a low-resolution provider thumbnail. Last resort.
	SourceThumb Source = "thumb"
	// SourceNone means the record has no usable cover image.
	SourceNone Source = "none"
)

// Reference is a resolved pointer to a record's cover image.
type Reference struct {
	Source Source
	Value  string
}

// Resolve picks the best available cover reference. Priority is strict:
// manual beats local beats auto beats thumb; whitespace-only values do not
// count as present.
func Resolve(manual, local, auto, thumb string) Reference {
	if v := strings.TrimSpace(manual); v != "" {
		return Reference{Source: SourceManual, Value: v}
	}
	if v := strings.TrimSpace(local); v != "" {
		return Reference{Source: SourceLocal, Value: v}
	}
	if v := strings.TrimSpace(auto); v != "" {
		return Reference{Source: SourceAuto, Value: v}
	}
	if v := strings.TrimSpace(thumb); v != "" {
		return Reference{Source: SourceThumb, Value: v}
	}
	return Reference{Source: SourceNone}
}

// IsNone reports whether the reference points at no image.
func (r Reference) IsNone() bool {
	return r.Source == SourceNone || r.Source == ""
}

// String renders the reference as "source:value" for logging and
// fingerprinting.
func (r Reference) String() string {
	if r.IsNone() {
		return string(SourceNone)
	}
	return string(r.Source) + ":" + r.Value
}
