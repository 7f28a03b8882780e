// Package crypto implements second-factor hashing and opaque token generation.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashSecondPassword returns the Argon2id hash of a parent's second password
// hash using the per-user salt.
func HashSecondPassword(secondHash, salt []byte) []byte {
	return argon2.IDKey(secondHash, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifySecondPassword verifies a submitted second password hash against the
// stored Argon2id digest and salt.
func VerifySecondPassword(secondHash, salt, expected []byte) bool {
	got := HashSecondPassword(secondHash, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
