package revoke_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	uu "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/revoke"
	"authd/internal/storage/memory"
)

type suite struct {
	service *revoke.Revoke
	store   *memory.Storage
	signer  *signer.Local
}

func newSuite(t *testing.T) *suite {
	t.Helper()

	sgn, err := signer.NewLocal("")
	require.NoError(t, err)

	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &suite{
		service: revoke.New(log, store, store, sgn, metrics.New()),
		store:   store,
		signer:  sgn,
	}
}

func (s *suite) mintAccess(t *testing.T, ttl time.Duration) (string, *jwtlib.AccessClaims) {
	t.Helper()

	now := time.Now()
	claims := &jwtlib.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   uu.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			ID:        uu.NewString(),
		},
		TokenUse: "access",
	}
	raw, err := s.signer.Sign(context.Background(), claims)
	require.NoError(t, err)
	return raw, claims
}

func TestRevoke_AccessTokenDenylisted(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	raw, claims := s.mintAccess(t, time.Hour)

	require.NoError(t, s.service.Revoke(ctx, raw, "access_token"))

	revoked, err := s.store.IsJTIRevoked(ctx, claims.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevoke_Idempotent(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	raw, _ := s.mintAccess(t, time.Hour)

	require.NoError(t, s.service.Revoke(ctx, raw, ""))
	require.NoError(t, s.service.Revoke(ctx, raw, ""))
}

func TestRevoke_UnknownTokenSucceeds(t *testing.T) {
	s := newSuite(t)

	assert.NoError(t, s.service.Revoke(context.Background(), "garbage-token-value", ""))
	assert.NoError(t, s.service.Revoke(context.Background(), "garbage-token-value", "refresh_token"))
}

func TestRevoke_ExpiredAccessTokenStillAccepted(t *testing.T) {
	s := newSuite(t)
	raw, _ := s.mintAccess(t, -time.Hour)

	assert.NoError(t, s.service.Revoke(context.Background(), raw, "access_token"))
}

func TestRevoke_RefreshTokenRevokesFamily(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	familyID := uu.New()
	now := time.Now()
	rawOld, err := jwtlib.NewOpaqueToken()
	require.NoError(t, err)
	rawActive, err := jwtlib.NewOpaqueToken()
	require.NoError(t, err)

	old := &models.RefreshToken{
		JTI:       uu.New(),
		TokenHash: jwtlib.HashToken(rawOld),
		FamilyID:  familyID,
		Subject:   uu.NewString(),
		ClientID:  "spa",
		Revoked:   true,
		IssuedAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
	}
	active := &models.RefreshToken{
		JTI:       uu.New(),
		TokenHash: jwtlib.HashToken(rawActive),
		FamilyID:  familyID,
		Subject:   old.Subject,
		ClientID:  "spa",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.store.SaveRefreshToken(ctx, old))
	require.NoError(t, s.store.SaveRefreshToken(ctx, active))

	// revoking the already-rotated member still kills the active one
	require.NoError(t, s.service.Revoke(ctx, rawOld, "refresh_token"))

	stored, err := s.store.RefreshTokenByHash(ctx, active.TokenHash)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)

	revoked, err := s.store.IsJTIRevoked(ctx, active.JTI.String(), time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}
