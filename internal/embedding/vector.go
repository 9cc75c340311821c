package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is a dense embedding.
type Vector []float32

// Norm returns the Euclidean length of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of the vector. Zero vectors are
// returned unchanged.
func (v Vector) Normalized() Vector {
	norm := v.Norm()
	if norm == 0 {
		return v
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine computes cosine similarity between two vectors of equal dimension.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// encodeVector packs a vector into a little-endian float32 blob.
func encodeVector(v Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks a blob produced by encodeVector. The declared
// dimension must match the blob length.
func decodeVector(blob []byte, dim int) (Vector, error) {
	if dim <= 0 || len(blob) != dim*4 {
		return nil, fmt.Errorf("vector blob length %d does not match dim %d", len(blob), dim)
	}
	v := make(Vector, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
