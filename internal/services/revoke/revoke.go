package revoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/revoke/interfaces"
	"authd/internal/storage"
)

// Revoke is the revocation ledger. Revocation is idempotent per RFC 7009:
// unknown, foreign and already-revoked tokens all succeed, so callers cannot
// probe the token space through this endpoint.
type Revoke struct {
	log      *slog.Logger
	tokens   interfaces.TokenProvider
	denylist interfaces.DenylistStorage
	signer   signer.Signer
	metrics  *metrics.Metrics
}

// New returns a new instance of the Revoke service
func New(
	log *slog.Logger,
	tokens interfaces.TokenProvider,
	denylist interfaces.DenylistStorage,
	s signer.Signer,
	m *metrics.Metrics,
) *Revoke {
	return &Revoke{
		log:      log,
		tokens:   tokens,
		denylist: denylist,
		signer:   s,
		metrics:  m,
	}
}

// Revoke invalidates a presented token. Opaque values are resolved as
// refresh tokens by hash, which revokes the whole rotation family. JWT
// values are parsed with the signature checked but claim validity skipped,
// so an expired access token can still be denylisted.
func (r *Revoke) Revoke(ctx context.Context, rawToken, hint string) error {
	const op = "revoke.Revoke"
	logger := r.log.With(slog.String("op", op))

	if hint != "access_token" {
		done, err := r.revokeRefresh(ctx, logger, rawToken)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if done {
			r.metrics.RevocationsTotal.WithLabelValues("refresh_token").Inc()
			return nil
		}
	}

	claims := &jwtlib.AccessClaims{}
	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
		jwtv5.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(rawToken, claims, r.signer.Keyfunc()); err != nil {
		// not one of ours; succeed anyway
		logger.Info("revocation of unrecognized token ignored")
		r.metrics.RevocationsTotal.WithLabelValues("unknown").Inc()
		return nil
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		r.metrics.RevocationsTotal.WithLabelValues("unknown").Inc()
		return nil
	}

	entry := models.RevokedJti{
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: time.Now(),
	}
	if err := r.denylist.RevokeJTI(ctx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.metrics.RevocationsTotal.WithLabelValues("access_token").Inc()
	logger.Info("token denylisted", slog.String("jti", claims.ID))
	return nil
}

// revokeRefresh resolves the value as an opaque refresh token. Returns false
// when no such refresh token exists so the caller can fall through to the
// JWT path.
func (r *Revoke) revokeRefresh(ctx context.Context, logger *slog.Logger, rawToken string) (bool, error) {
	token, err := r.tokens.RefreshTokenByHash(ctx, jwtlib.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	revoked, err := r.tokens.RevokeFamily(ctx, token.FamilyID)
	if err != nil {
		return false, err
	}
	now := time.Now()
	for _, member := range revoked {
		entry := models.RevokedJti{
			JTI:       member.JTI.String(),
			ExpiresAt: member.ExpiresAt,
			RevokedAt: now,
		}
		if err := r.denylist.RevokeJTI(ctx, entry); err != nil {
			return false, err
		}
	}
	logger.Info("refresh token family revoked",
		slog.String("family_id", token.FamilyID.String()),
		slog.Int("members", len(revoked)),
	)
	return true, nil
}

// RunSweeper prunes expired denylist entries until the context is canceled.
// Pruning reclaims space only; verification ignores expired entries either way.
func (r *Revoke) RunSweeper(ctx context.Context, interval time.Duration) error {
	const op = "revoke.RunSweeper"
	logger := r.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pruned, err := r.denylist.PruneDenylist(ctx, time.Now())
			if err != nil {
				logger.Error("denylist prune failed", slog.String("error", err.Error()))
				continue
			}
			if pruned > 0 {
				r.metrics.DenylistPrunedTotal.Add(float64(pruned))
				logger.Info("denylist pruned", slog.Int64("removed", pruned))
			}
		}
	}
}
