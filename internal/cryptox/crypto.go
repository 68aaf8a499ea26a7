// Package cryptox holds low-level primitives shared by the credential
// schemes: PBKDF2 key derivation and constant-time comparison.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2KeyLen is the derived key size in bytes (256 bits).
const PBKDF2KeyLen = 32

// DerivePBKDF2SHA256 derives a PBKDF2-HMAC-SHA256 key of PBKDF2KeyLen bytes.
func DerivePBKDF2SHA256(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, PBKDF2KeyLen, sha256.New)
}

// ConstantTimeEqual reports whether a and b are equal without leaking
// the position of the first difference through timing.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
