package store

import (
	"crypto/sha1"
	"encoding/hex"
)

// sha1Hex returns the hex-encoded SHA-1 digest of data, the checksum
// recorded alongside every stored fulltext and re-verified whenever a
// delta chain is walked back to reconstruct it.
func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
