package embedding

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable identifier for the cover source an embedding
// was built from. Comparing fingerprints tells whether a stored embedding
// still reflects the record's current cover reference.
func Fingerprint(reference string) string {
	sum := sha256.Sum256([]byte(reference))
	return hex.EncodeToString(sum[:])
}
