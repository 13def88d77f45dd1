package postgres

import (
	"context"
	"errors"
	"fmt"

	uu "github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// SaveAuthRequest saves an in-flight authorization request
func (s *Storage) SaveAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO authorization_requests(id, client_id, redirect_uri, scope, state, nonce,
		                                    code_challenge, code_challenge_method, subject, status,
		                                    created_at, expires_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID,
		req.ClientID,
		req.RedirectURI,
		req.Scope,
		req.State,
		req.Nonce,
		req.PKCE.CodeChallenge,
		req.PKCE.Method,
		req.Subject,
		req.Status,
		req.CreatedAt,
		req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save authorization request: %w", err)
	}
	return nil
}

// AuthRequest gets an authorization request by its opaque id
func (s *Storage) AuthRequest(ctx context.Context, id uu.UUID) (*models.AuthorizationRequest, error) {
	var req models.AuthorizationRequest
	row := s.dbPool.QueryRow(
		ctx,
		`SELECT id, client_id, redirect_uri, scope, state, nonce, code_challenge,
		        code_challenge_method, subject, status, created_at, expires_at
		 FROM authorization_requests WHERE id = $1`,
		id,
	)
	err := row.Scan(
		&req.ID,
		&req.ClientID,
		&req.RedirectURI,
		&req.Scope,
		&req.State,
		&req.Nonce,
		&req.PKCE.CodeChallenge,
		&req.PKCE.Method,
		&req.Subject,
		&req.Status,
		&req.CreatedAt,
		&req.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to query authorization request: %w", err)
	}
	return &req, nil
}

// UpdateAuthRequest advances the state of an in-flight authorization request
func (s *Storage) UpdateAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error {
	tag, err := s.dbPool.Exec(
		ctx,
		`UPDATE authorization_requests SET subject = $2, status = $3 WHERE id = $1`,
		req.ID,
		req.Subject,
		req.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update authorization request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrRequestNotFound
	}
	return nil
}

// RemoveAuthRequest deletes a consumed or abandoned authorization request
func (s *Storage) RemoveAuthRequest(ctx context.Context, id uu.UUID) error {
	_, err := s.dbPool.Exec(
		ctx,
		`DELETE FROM authorization_requests WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete authorization request: %w", err)
	}
	return nil
}
