package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey derives the stored digest for a raw agent key. Only digests are
// persisted; bearer lookups hash the presented key and compare digests.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
