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

// RequestStorage tracks in-flight authorization requests
type RequestStorage interface {
	SaveAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error
	AuthRequest(ctx context.Context, id uu.UUID) (*models.AuthorizationRequest, error)
	UpdateAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error
	RemoveAuthRequest(ctx context.Context, id uu.UUID) error
}

// CodeStorage persists minted authorization codes
type CodeStorage interface {
	SaveAuthCode(ctx context.Context, code *models.AuthorizationCode) error
}

// ConsentStorage persists subject consent decisions
type ConsentStorage interface {
	Consent(ctx context.Context, subject, clientID string) (*models.ConsentGrant, error)
	SaveConsent(ctx context.Context, grant *models.ConsentGrant) error
	RemoveConsent(ctx context.Context, subject, clientID string) error
}
