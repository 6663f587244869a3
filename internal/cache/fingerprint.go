package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the cache key for a request. Fields are NUL-separated
// so ("ab", "c") and ("a", "bc") never collide.
func Fingerprint(userID, comment, platform string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(comment))
	h.Write([]byte{0})
	h.Write([]byte(platform))
	return hex.EncodeToString(h.Sum(nil))
}
