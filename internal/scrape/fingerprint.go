package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 40

// Fingerprint returns a stable content hash of the concatenated parts.
// There is no field separator, so callers must salt with a portal key to
// keep identical title/reference/date triples from colliding across
// portals. Empty parts are valid and still produce a stable digest.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// RecordFingerprint computes the canonical identity of a record:
// title, project reference and expiry date, salted with the target key.
func RecordFingerprint(title, projectReference, expiryDate, portalKey string) string {
	return Fingerprint(title, projectReference, expiryDate, portalKey)
}
