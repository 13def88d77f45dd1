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

// SaveRefreshToken saves refresh token metadata in data table 'refresh_tokens'
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO refresh_tokens(jti, token_hash, family_id, subject, client_id, scope,
		                            revoked, issued_at, expires_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.JTI,
		token.TokenHash,
		token.FamilyID,
		token.Subject,
		token.ClientID,
		token.Scope,
		token.Revoked,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// RefreshTokenByHash gets refresh token metadata by the hash of the raw value
func (s *Storage) RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.dbPool.QueryRow(
		ctx,
		`SELECT jti, token_hash, family_id, subject, client_id, scope, revoked, issued_at, expires_at
		 FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(
		&token.JTI,
		&token.TokenHash,
		&token.FamilyID,
		&token.Subject,
		&token.ClientID,
		&token.Scope,
		&token.Revoked,
		&token.IssuedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}
	return &token, nil
}

// MarkRotated atomically revokes a not-yet-revoked refresh token and returns
// its metadata. A second concurrent rotation for the same token sees zero
// affected rows and gets ErrTokenRevoked — the reuse signal.
func (s *Storage) MarkRotated(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.dbPool.QueryRow(
		ctx,
		`UPDATE refresh_tokens SET revoked = TRUE
		 WHERE token_hash = $1 AND revoked = FALSE
		 RETURNING jti, token_hash, family_id, subject, client_id, scope, revoked, issued_at, expires_at`,
		tokenHash,
	).Scan(
		&token.JTI,
		&token.TokenHash,
		&token.FamilyID,
		&token.Subject,
		&token.ClientID,
		&token.Scope,
		&token.Revoked,
		&token.IssuedAt,
		&token.ExpiresAt,
	)
	if err == nil {
		return &token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	var exists bool
	err = s.dbPool.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`,
		tokenHash,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if exists {
		return nil, storage.ErrTokenRevoked
	}
	return nil, storage.ErrTokenNotFound
}

// RevokeFamily revokes every token sharing the family id and returns the
// affected rows so their JTIs can be denylisted.
func (s *Storage) RevokeFamily(ctx context.Context, familyID uu.UUID) ([]models.RefreshToken, error) {
	rows, err := s.dbPool.Query(
		ctx,
		`UPDATE refresh_tokens SET revoked = TRUE
		 WHERE family_id = $1
		 RETURNING jti, token_hash, family_id, subject, client_id, scope, revoked, issued_at, expires_at`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke token family: %w", err)
	}
	defer rows.Close()

	var revoked []models.RefreshToken
	for rows.Next() {
		var token models.RefreshToken
		if err := rows.Scan(
			&token.JTI,
			&token.TokenHash,
			&token.FamilyID,
			&token.Subject,
			&token.ClientID,
			&token.Scope,
			&token.Revoked,
			&token.IssuedAt,
			&token.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scanning revoked token failed: %w", err)
		}
		revoked = append(revoked, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return revoked, nil
}
