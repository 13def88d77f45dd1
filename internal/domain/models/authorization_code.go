package models

import (
	uu "github.com/google/uuid"
	"time"
)

// AuthorizationCode depends on RFC OAuth 2.1: a single-use credential handed
// to the client after consent. Only the SHA-256 hash of the code value is
// persisted; redemption after the first success or after expiry fails closed.
type AuthorizationCode struct {
	CodeHash    string    `json:"-" db:"code_hash"`
	RequestID   uu.UUID   `json:"request_id" db:"request_id"`
	ClientID    string    `json:"client_id" db:"client_id"`
	RedirectURI string    `json:"redirect_uri" db:"redirect_uri"`
	Subject     string    `json:"subject" db:"subject"`
	Scope       string    `json:"scope" db:"scope"`
	Nonce       string    `json:"nonce" db:"nonce"`
	PKCE        PKCE      `json:"pkce" db:"pkce"`
	Used        bool      `json:"used" db:"used"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the code outlived its TTL at the given instant.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
