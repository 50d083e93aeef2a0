// Package checksum computes document digests and their ETag form.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest for the ETag header.
func ETag(sum string) string { return `"` + sum + `"` }

// FromIfMatch extracts the digest from an If-Match header value. Weak
// validators are accepted. An empty value or "*" yields "", meaning any
// version matches.
func FromIfMatch(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	if v == "*" {
		return ""
	}
	return strings.Trim(v, `"`)
}
