package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashForLogging returns the first 8 hex characters of the SHA-256 digest of
// a sensitive value. Logs carry this correlation id instead of raw emails or
// passwords: entries about the same value can be matched without revealing it.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "NONE"
	}
	sum := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(sum[:])[:8]
}
