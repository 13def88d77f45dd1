package models

import (
	uu "github.com/google/uuid"
	"time"
)

// RefreshToken metadata persisted for a minted refresh token. The raw token
// value never touches the store; only its SHA-256 hash does. FamilyID is
// shared by every token derived from the same original grant, so that a
// detected reuse can revoke the whole rotation chain.
type RefreshToken struct {
	JTI       uu.UUID   `json:"jti" db:"jti"`
	TokenHash string    `json:"-" db:"token_hash"`
	FamilyID  uu.UUID   `json:"family_id" db:"family_id"`
	Subject   string    `json:"subject" db:"subject"`
	ClientID  string    `json:"client_id" db:"client_id"`
	Scope     string    `json:"scope" db:"scope"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the token outlived its TTL at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
