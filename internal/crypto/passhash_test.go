package crypto

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedAndCost(t *testing.T) {
	t.Parallel()

	pw := []byte("p@ssw0rd")

	h1, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("two hashes of the same password are equal, salt missing")
	}
	if bytes.Contains(h1, pw) {
		t.Fatalf("hash contains plaintext")
	}

	cost, err := bcrypt.Cost(h1)
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != Cost {
		t.Fatalf("cost=%d, want=%d", cost, Cost)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	pw := []byte("correct horse battery staple")
	hash, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword(pw, hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if VerifyPassword([]byte("wrong"), hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if VerifyPassword([]byte{}, hash) {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
	if VerifyPassword(pw, nil) {
		t.Fatalf("VerifyPassword: expected false for missing hash")
	}
	if VerifyPassword(pw, []byte("not-a-bcrypt-hash")) {
		t.Fatalf("VerifyPassword: expected false for garbage hash")
	}
}
