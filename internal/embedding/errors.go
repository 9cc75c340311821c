// Package embedding turns cover images into fixed-dimension vectors and
// persists them per record. Vectors from different model versions are never
// comparable, so every stored embedding carries the version that produced it.
package embedding

import "errors"

var (
	// ErrDecode indicates the image bytes could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrEncoder indicates the encoder backend failed or returned an
	// unusable response.
	ErrEncoder = errors.New("encoder failed")
	// ErrIndexWrite indicates an embedding could not be persisted.
	ErrIndexWrite = errors.New("embedding index write failed")
)
