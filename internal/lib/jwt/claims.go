package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"authd/internal/config"
)

// Claim payloads are tagged per token type with a fixed field set so that
// unknown-shaped payloads are rejected at the boundary instead of being
// duck-typed out of a claims map.

// AccessClaims is the claim set of a minted access token.
// Subject is empty for client_credentials grants.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scope       string   `json:"scope"`
	Permissions []string `json:"permissions,omitempty"`
	TokenUse    string   `json:"token_use"`
}

// IDClaims is the claim set of an OIDC ID token. The scope-gated profile
// claims are filled by the projector.
type IDClaims struct {
	jwt.RegisteredClaims
	Nonce         string `json:"nonce,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Name          string `json:"name,omitempty"`
	TokenUse      string `json:"token_use"`
}

// Type returns the token variant carried by the claim set.
func (c *AccessClaims) Type() config.TokenType { return config.ACCESS }

// Type returns the token variant carried by the claim set.
func (c *IDClaims) Type() config.TokenType { return config.ID }
