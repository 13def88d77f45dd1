package interfaces

import (
	"context"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
)

// TokenVerifier validates a presented access token
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string, expectedAud string) (*jwtlib.AccessClaims, error)
}

// UserProvider resolves subjects for claim projection
type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}
