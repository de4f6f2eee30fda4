package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a stable hex digest, used to log applicant identity without the raw name.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 12 hex characters of HashKey.
func ShortHash(s string) string {
	return HashKey(s)[:12]
}
