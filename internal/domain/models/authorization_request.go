package models

import (
	uu "github.com/google/uuid"
	"time"
)

// AuthorizationState tracks an in-flight authorization request from the
// initial redirect until the code exchange.
type AuthorizationState string

const (
	StateInitiated     AuthorizationState = "INITIATED"
	StateAuthenticated AuthorizationState = "AUTHENTICATED"
	StateConsented     AuthorizationState = "CONSENTED"
	StateCodeIssued    AuthorizationState = "CODE_ISSUED"
	StateExchanged     AuthorizationState = "EXCHANGED"
	StateExpired       AuthorizationState = "EXPIRED"
	StateDenied        AuthorizationState = "DENIED"
)

// AuthorizationRequest is a single-use in-flight authorization-code transaction.
// Once exchanged for a code it is consumed and cannot be reused.
type AuthorizationRequest struct {
	ID          uu.UUID            `json:"id" db:"id"`
	ClientID    string             `json:"client_id" db:"client_id"`
	RedirectURI string             `json:"redirect_uri" db:"redirect_uri"`
	Scope       string             `json:"scope" db:"scope"`
	State       string             `json:"state" db:"state"`
	Nonce       string             `json:"nonce" db:"nonce"`
	PKCE        PKCE               `json:"pkce" db:"pkce"`
	Subject     string             `json:"subject" db:"subject"`
	Status      AuthorizationState `json:"status" db:"status"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the request outlived its TTL at the given instant.
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
