package signer

import (
	"context"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// Signer holds the asymmetric signing key pair. Signing happens on the
// private side; verification needs only the public key, so resource servers
// can verify with the published JWKS alone.
type Signer interface {
	// Sign produces a compact JWS over the claim set with the active key id
	// in the header.
	Sign(ctx context.Context, claims jwtv5.Claims) (string, error)
	// KeyID returns the active key id.
	KeyID() string
	// Keyfunc resolves the public key for a presented token by its kid,
	// accepting recently rotated keys that are still published.
	Keyfunc() jwtv5.Keyfunc
	// JWKS returns the published public key set.
	JWKS(ctx context.Context) (jwk.Set, error)
}
