// Package crypto implements content checksums for persisted snapshots.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Sum returns the hex-encoded BLAKE2b-256 digest of data.
func Sum(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports whether sum is the digest of data, in constant time.
func Verify(data []byte, sum string) bool {
	want, err := hex.DecodeString(sum)
	if err != nil || len(want) != blake2b.Size256 {
		return false
	}
	got := blake2b.Sum256(data)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}
