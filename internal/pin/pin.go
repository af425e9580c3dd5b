// Package pin implements the two-step PIN credential scheme: a deterministic
// HMAC-SHA256 fingerprint used only as a lookup key, and a bcrypt hash used
// for the actual verification.
package pin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Fingerprint derives the lookup key for a plaintext PIN. It is keyed with a
// server-side pepper so the stored value is useless without the secret.
func Fingerprint(pepper, pin string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(pin))
	return hex.EncodeToString(mac.Sum(nil))
}

// Hash produces the salted verification hash for a plaintext PIN.
func Hash(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext PIN matches the stored hash.
func Verify(hash, pin string) bool {
	if hash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
