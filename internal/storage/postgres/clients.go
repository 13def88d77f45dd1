package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// Client gets a registered client from data table 'clients'
func (s *Storage) Client(ctx context.Context, clientID string) (*models.Client, error) {
	var (
		client            models.Client
		accessSec, refSec *int64
	)
	row := s.dbPool.QueryRow(
		ctx,
		`SELECT id, name, secret_hash, redirect_uris, grant_types, scopes, require_pkce,
		        access_ttl_seconds, refresh_ttl_seconds, created_at
		 FROM clients WHERE id = $1`,
		clientID,
	)
	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.SecretHash,
		&client.RedirectURIs,
		&client.GrantTypes,
		&client.Scopes,
		&client.RequirePKCE,
		&accessSec,
		&refSec,
		&client.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	client.AccessTTL = secondsToDuration(accessSec)
	client.RefreshTTL = secondsToDuration(refSec)
	return &client, nil
}

// SaveClient saves a registered client in data table 'clients'
func (s *Storage) SaveClient(ctx context.Context, client *models.Client) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO clients(id, name, secret_hash, redirect_uris, grant_types, scopes, require_pkce,
		                     access_ttl_seconds, refresh_ttl_seconds, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		client.ID,
		client.Name,
		client.SecretHash,
		client.RedirectURIs,
		client.GrantTypes,
		client.Scopes,
		client.RequirePKCE,
		durationToSeconds(client.AccessTTL),
		durationToSeconds(client.RefreshTTL),
		client.CreatedAt,
	)
	if err != nil {
		var pgxError *pgconn.PgError
		if errors.As(err, &pgxError) && pgxError.Code == "23505" {
			return storage.ErrClientExists
		}
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func secondsToDuration(sec *int64) *time.Duration {
	if sec == nil {
		return nil
	}
	d := time.Duration(*sec) * time.Second
	return &d
}

func durationToSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	sec := int64(*d / time.Second)
	return &sec
}
