package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// SaveAuthCode saves a models.AuthorizationCode to db
func (s *Storage) SaveAuthCode(ctx context.Context, code *models.AuthorizationCode) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO authorization_codes(code_hash, request_id, client_id, redirect_uri, subject, scope, nonce,
		                                 code_challenge, code_challenge_method, used, expires_at, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)`,
		code.CodeHash,
		code.RequestID,
		code.ClientID,
		code.RedirectURI,
		code.Subject,
		code.Scope,
		code.Nonce,
		code.PKCE.CodeChallenge,
		code.PKCE.Method,
		code.ExpiresAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// ConsumeAuthCode atomically marks an authorization code used and returns it.
// The compare-and-mark guarantees exactly-once redemption: a concurrent
// second redemption sees zero affected rows and gets ErrCodeConsumed.
func (s *Storage) ConsumeAuthCode(ctx context.Context, codeHash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	row := s.dbPool.QueryRow(
		ctx,
		`UPDATE authorization_codes SET used = TRUE
		 WHERE code_hash = $1 AND used = FALSE
		 RETURNING code_hash, request_id, client_id, redirect_uri, subject, scope, nonce,
		           code_challenge, code_challenge_method, used, expires_at, created_at`,
		codeHash,
	)
	err := row.Scan(
		&code.CodeHash,
		&code.RequestID,
		&code.ClientID,
		&code.RedirectURI,
		&code.Subject,
		&code.Scope,
		&code.Nonce,
		&code.PKCE.CodeChallenge,
		&code.PKCE.Method,
		&code.Used,
		&code.ExpiresAt,
		&code.CreatedAt,
	)
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	// Distinguish "never existed" from "already consumed" for internal
	// bookkeeping; callers collapse both into invalid_grant.
	var exists bool
	err = s.dbPool.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM authorization_codes WHERE code_hash = $1)`,
		codeHash,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization code: %w", err)
	}
	if exists {
		return nil, storage.ErrCodeConsumed
	}
	return nil, storage.ErrCodeNotFound
}
