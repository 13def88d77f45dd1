package interfaces

import (
	"context"
	"time"

	uu "github.com/google/uuid"

	"authd/internal/domain/models"
)

// TokenProvider resolves refresh tokens and revokes rotation families
type TokenProvider interface {
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID uu.UUID) ([]models.RefreshToken, error)
}

// DenylistStorage records revoked token ids and prunes expired entries
type DenylistStorage interface {
	RevokeJTI(ctx context.Context, entry models.RevokedJti) error
	PruneDenylist(ctx context.Context, now time.Time) (int64, error)
}
