package covers

import "errors"

var (
	// ErrNoImage indicates the record resolved to no cover image at all.
	ErrNoImage = errors.New("no cover image available")
	// ErrFetch indicates a resolved image could not be retrieved.
	ErrFetch = errors.New("cover image fetch failed")
)
