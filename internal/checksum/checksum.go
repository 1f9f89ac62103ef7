// Package checksum computes note body fingerprints.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Body returns the fingerprint of a note body.
func Body(body string) string {
	return Sum([]byte(body))
}
