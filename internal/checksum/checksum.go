// Package checksum computes content digests used for change detection and
// HTTP validators.
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

// String is Sum for string content.
func String(s string) string {
	return Sum([]byte(s))
}

// ETag returns a strong HTTP entity tag for content.
func ETag(content string) string {
	return `"` + String(content)[:16] + `"`
}
