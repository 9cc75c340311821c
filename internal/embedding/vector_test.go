package embedding

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 0},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1},
		{"scaled", Vector{2, 0}, Vector{5, 0}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Cosine(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Cosine: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	if _, err := Cosine(Vector{1, 2}, Vector{1, 2, 3}); err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
}

func TestNormalized(t *testing.T) {
	v := Vector{3, 4}.Normalized()
	if math.Abs(v.Norm()-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", v.Norm())
	}

	zero := Vector{0, 0}.Normalized()
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector should stay zero, got %v", zero)
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	v := Vector{0.25, -1.5, 3.25, 0}
	blob := encodeVector(v)
	if len(blob) != 16 {
		t.Fatalf("expected 16-byte blob, got %d", len(blob))
	}
	back, err := decodeVector(blob, len(v))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	for i := range v {
		if back[i] != v[i] {
			t.Fatalf("round trip mismatch at %d: %v != %v", i, back[i], v[i])
		}
	}

	if _, err := decodeVector(blob, 3); err == nil {
		t.Fatal("expected error on dim mismatch")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("manual:https://example.com/a.jpg")
	b := Fingerprint("manual:https://example.com/a.jpg")
	c := Fingerprint("thumb:https://example.com/a.jpg")
	if a != b {
		t.Fatal("fingerprint should be deterministic")
	}
	if a == c {
		t.Fatal("different references should fingerprint differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 length 64, got %d", len(a))
	}
}
