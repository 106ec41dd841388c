package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns the hex-encoded SHA-256 of s. Reset tokens carry the fingerprint of the
// password hash they were issued against instead of the hash itself.
func Fingerprint(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual reports, in constant time, whether fingerprint was computed from s.
func FingerprintEqual(s, fingerprint string) bool {
	return subtle.ConstantTimeCompare([]byte(Fingerprint(s)), []byte(fingerprint)) == 1
}
