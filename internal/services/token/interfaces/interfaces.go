package interfaces

import (
	"context"

	uu "github.com/google/uuid"

	"authd/internal/domain/models"
)

// ClientProvider resolves registered clients
type ClientProvider interface {
	Client(ctx context.Context, clientID string) (*models.Client, error)
}

// UserProvider resolves subjects for claim projection
type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}

// CodeStorage redeems authorization codes. ConsumeAuthCode must be
// atomic-exactly-once: of two concurrent redemptions for the same code only
// one may observe the unconsumed row.
type CodeStorage interface {
	ConsumeAuthCode(ctx context.Context, codeHash string) (*models.AuthorizationCode, error)
}

// TokenStorage performs refresh-token db operations. MarkRotated must flip
// the revoked flag under a conditional write so two concurrent rotations for
// the same token cannot both see "not yet revoked".
type TokenStorage interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	MarkRotated(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID uu.UUID) ([]models.RefreshToken, error)
}

// DenylistStorage records revoked token ids
type DenylistStorage interface {
	RevokeJTI(ctx context.Context, entry models.RevokedJti) error
}

// RequestStorage advances in-flight authorization requests to their terminal
// state once their code is exchanged
type RequestStorage interface {
	AuthRequest(ctx context.Context, id uu.UUID) (*models.AuthorizationRequest, error)
	UpdateAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error
}
