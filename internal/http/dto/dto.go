package dto

import "time"

// AuthorizationRequestResponse is returned by the authorization endpoint; the
// login collaborator drives the rest of the flow with the request id.
type AuthorizationRequestResponse struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthenticateRequest binds the externally authenticated subject to an
// in-flight authorization request.
type AuthenticateRequest struct {
	Subject string `json:"subject"`
}

// AuthenticateResponse reports whether interactive consent is still needed.
type AuthenticateResponse struct {
	Status        string `json:"status"`
	ConsentNeeded bool   `json:"consent_needed"`
}

// DecisionRequest carries the resource owner's consent decision.
type DecisionRequest struct {
	Approved bool `json:"approved"`
}

// DecisionResponse carries the redirect the user agent should follow.
type DecisionResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// RevokeRequest is the JSON variant of the RFC 7009 revocation body.
type RevokeRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint,omitempty"`
}
