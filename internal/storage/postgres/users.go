package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// UserByID searches user in database by his ID
func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.dbPool.QueryRow(
		ctx,
		`SELECT id, email, email_verified, given_name, family_name FROM users WHERE id = $1`,
		id,
	)
	err := row.Scan(&user.ID, &user.Email, &user.EmailVerified, &user.GivenName, &user.FamilyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// SaveUser saves user profile attributes in data table 'users'
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO users(id, email, email_verified, given_name, family_name)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email, email_verified = EXCLUDED.email_verified,
		     given_name = EXCLUDED.given_name, family_name = EXCLUDED.family_name`,
		user.ID,
		user.Email,
		user.EmailVerified,
		user.GivenName,
		user.FamilyName,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
