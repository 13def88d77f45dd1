package postgres

import (
	"context"
	"fmt"
	"time"

	"authd/internal/domain/models"
)

// RevokeJTI inserts/overwrites a denylist entry keyed by token id
func (s *Storage) RevokeJTI(ctx context.Context, entry models.RevokedJti) error {
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO revoked_jtis(jti, expires_at, revoked_at)
		 VALUES($1, $2, $3)
		 ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		entry.JTI,
		entry.ExpiresAt,
		entry.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to denylist jti: %w", err)
	}
	return nil
}

// IsJTIRevoked checks the denylist; entries past their own token's expiry do
// not count as revoked even before the sweeper prunes them.
func (s *Storage) IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var revoked bool
	err := s.dbPool.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_jtis WHERE jti = $1 AND expires_at > $2)`,
		jti,
		now,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check denylist: %w", err)
	}
	return revoked, nil
}

// PruneDenylist removes entries whose token expired anyway. Space
// optimization only; correctness holds without it.
func (s *Storage) PruneDenylist(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.dbPool.Exec(
		ctx,
		`DELETE FROM revoked_jtis WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune denylist: %w", err)
	}
	return tag.RowsAffected(), nil
}
