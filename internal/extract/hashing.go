package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const idLength = 12

// SHA256Hash returns the first 12 hex characters of the SHA-256 of the
// normalised text, or "" when nothing survives normalisation.
func SHA256Hash(text string) string {
	normalised := NormaliseText(text)
	if normalised == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])[:idLength]
}

// StableID derives a deterministic identifier from the inputs: each is
// normalised, the parts joined with "-", and the result hashed. The
// same entity always gets the same id across runs, which is what lets
// raw files and progress survive restarts.
func StableID(inputs ...string) string {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = NormaliseText(in)
	}
	return SHA256Hash(strings.Join(parts, "-"))
}
