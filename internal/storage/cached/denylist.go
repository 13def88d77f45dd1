package cached

import (
	"context"
	"log/slog"
	"time"

	"authd/internal/domain/models"
	"authd/internal/storage/redis"
)

// DenylistBackend is the durable denylist underneath the cache.
type DenylistBackend interface {
	RevokeJTI(ctx context.Context, entry models.RevokedJti) error
	IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	PruneDenylist(ctx context.Context, now time.Time) (int64, error)
}

// CachedDenylist layers the redis cache over the durable denylist. A cache
// hit answers immediately; a miss falls through to the backend. Cache write
// failures are logged and swallowed: the backend remains the source of truth.
type CachedDenylist struct {
	s   DenylistBackend
	c   *redis.Cache
	log *slog.Logger
}

// NewCachedDenylist creates an instance of combined denylist with cache
func NewCachedDenylist(s DenylistBackend, c *redis.Cache, log *slog.Logger) *CachedDenylist {
	return &CachedDenylist{s: s, c: c, log: log}
}

// RevokeJTI writes the entry to the backend first, then mirrors it in cache
func (cd *CachedDenylist) RevokeJTI(ctx context.Context, entry models.RevokedJti) error {
	if err := cd.s.RevokeJTI(ctx, entry); err != nil {
		return err
	}
	if err := cd.c.RevokeJTI(ctx, entry); err != nil {
		cd.log.Warn("failed to mirror denylist entry in cache", slog.String("error", err.Error()))
	}
	return nil
}

// IsJTIRevoked checks cache before the backend
func (cd *CachedDenylist) IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	revoked, err := cd.c.IsJTIRevoked(ctx, jti)
	if err == nil && revoked {
		return true, nil
	}
	if err != nil {
		cd.log.Warn("cached denylist check failed", slog.String("error", err.Error()))
	}
	return cd.s.IsJTIRevoked(ctx, jti, now)
}

// PruneDenylist delegates to the backend; redis entries expire on their own
func (cd *CachedDenylist) PruneDenylist(ctx context.Context, now time.Time) (int64, error) {
	return cd.s.PruneDenylist(ctx, now)
}
