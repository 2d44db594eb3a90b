// Package integrity binds a canonical payload to a fixed-length digest. The
// digest is an integrity check, not an authentication tag: no secret key is
// involved, so any third party can recompute it from the same facts. For the
// same reason it must be a pure function of the payload bytes; wall-clock
// time or random salt would make independent verifiers disagree.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Version tags the payload scheme so the digest format can evolve without
// invalidating certificates issued under an older scheme.
const Version = "v1"

// Digest hashes the canonical payload with SHA-256 and prefixes the scheme
// version. Output shape: "v1:<64 hex chars>".
func Digest(canonicalPayload string) string {
	sum := sha256.Sum256([]byte(canonicalPayload))
	return Version + ":" + hex.EncodeToString(sum[:])
}

// Verify reports whether the provided digest exactly matches the stored one.
// Comparison is constant-time; a mismatch is a normal negative validation
// result, not a fault.
func Verify(stored, provided string) bool {
	if stored == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}

// VersionOf extracts the scheme version from a digest string, or empty if the
// digest carries no recognizable tag.
func VersionOf(digest string) string {
	idx := strings.IndexByte(digest, ':')
	if idx <= 0 {
		return ""
	}
	return digest[:idx]
}
