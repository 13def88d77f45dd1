package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// NewOpaqueToken creates a high-entropy opaque credential (refresh tokens,
// authorization codes). 32 random bytes, base64url without padding.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the SHA-256 of a raw token value, base64url without
// padding. Stored instead of the raw value for codes and refresh tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// S256Challenge derives the PKCE code challenge from a code verifier:
// base64url(sha256(verifier)), no padding.
func S256Challenge(verifier string) string {
	return HashToken(verifier)
}

// VerifyS256 compares a presented code verifier against the stored challenge
// in constant time. Challenges are case-sensitive.
func VerifyS256(verifier, challenge string) bool {
	derived := S256Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}
