package usecase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// newToken returns a short correlation token. Six hex chars of a hash over
// secure random bytes keeps collisions among live profiles negligible while
// staying readable in a response header.
func newToken() string {
	var seed [16]byte
	_, _ = rand.Read(seed[:])
	sum := sha256.Sum256(seed[:])
	return hex.EncodeToString(sum[:])[:6]
}
