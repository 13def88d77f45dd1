package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// Consent gets a subject's consent grant for a client
func (s *Storage) Consent(ctx context.Context, subject, clientID string) (*models.ConsentGrant, error) {
	var grant models.ConsentGrant
	err := s.dbPool.QueryRow(
		ctx,
		`SELECT subject, client_id, scopes, granted_at
		 FROM consent_grants WHERE subject = $1 AND client_id = $2`,
		subject,
		clientID,
	).Scan(&grant.Subject, &grant.ClientID, &grant.Scopes, &grant.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to query consent grant: %w", err)
	}
	return &grant, nil
}

// SaveConsent saves (or widens) a subject's consent grant for a client
func (s *Storage) SaveConsent(ctx context.Context, grant *models.ConsentGrant) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO consent_grants(subject, client_id, scopes, granted_at)
		 VALUES($1, $2, $3, $4)
		 ON CONFLICT (subject, client_id) DO UPDATE
		 SET scopes = EXCLUDED.scopes, granted_at = EXCLUDED.granted_at`,
		grant.Subject,
		grant.ClientID,
		grant.Scopes,
		grant.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save consent grant: %w", err)
	}
	return nil
}

// RemoveConsent deletes a subject's consent grant for a client
func (s *Storage) RemoveConsent(ctx context.Context, subject, clientID string) error {
	_, err := s.dbPool.Exec(
		ctx,
		`DELETE FROM consent_grants WHERE subject = $1 AND client_id = $2`,
		subject,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete consent grant: %w", err)
	}
	return nil
}
