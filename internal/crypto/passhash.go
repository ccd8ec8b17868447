// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor used for new hashes.
const Cost = 10

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// dummyHash is compared against when the account is missing, so absent users cost
// the same time as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("todo-dummy-password"), Cost)

// HashPassword returns a bcrypt hash of password with a random per-call salt embedded.
func HashPassword(password []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(password, Cost)
}

// VerifyPassword reports whether password matches the expected bcrypt hash.
// A nil hash is checked against a dummy value and always fails.
func VerifyPassword(password, expected []byte) bool {
	if len(expected) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, password)
		return false
	}
	return bcrypt.CompareHashAndPassword(expected, password) == nil
}
