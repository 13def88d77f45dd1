package models

import "time"

// RevokedJti is a denylist entry keyed by token id. ExpiresAt equals the
// original token's expiry, so entries past their token's natural lifetime can
// be pruned without loosening anything.
type RevokedJti struct {
	JTI       string    `json:"jti" db:"jti"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	RevokedAt time.Time `json:"revoked_at" db:"revoked_at"`
}
