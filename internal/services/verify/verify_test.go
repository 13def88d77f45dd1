package verify_test

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
	"authd/internal/services/verify"
	"authd/internal/storage/memory"
)

const issuer = "https://auth.example"

type suite struct {
	service *verify.Verify
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
		service: verify.New(log, sgn, store, metrics.New()),
		store:   store,
		signer:  sgn,
	}
}

func (s *suite) mint(t *testing.T, ttl time.Duration, audience string) (string, *jwtlib.AccessClaims) {
	t.Helper()

	now := time.Now()
	claims := &jwtlib.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uu.NewString(),
			Audience:  jwtv5.ClaimStrings{audience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			ID:        uu.NewString(),
		},
		Scope:    "openid",
		TokenUse: "access",
	}
	raw, err := s.signer.Sign(context.Background(), claims)
	require.NoError(t, err)
	return raw, claims
}

func TestVerify_Valid(t *testing.T) {
	s := newSuite(t)
	raw, minted := s.mint(t, time.Minute, "api")

	claims, err := s.service.VerifyAccessToken(context.Background(), raw, "api")
	require.NoError(t, err)
	assert.Equal(t, minted.ID, claims.ID)
	assert.Equal(t, minted.Subject, claims.Subject)
}

func TestVerify_Malformed(t *testing.T) {
	s := newSuite(t)

	_, err := s.service.VerifyAccessToken(context.Background(), "not-a-jwt", "")
	assert.Equal(t, verify.KindMalformed, verify.KindOf(err))
}

func TestVerify_ForeignSignature(t *testing.T) {
	s := newSuite(t)

	other, err := signer.NewLocal("")
	require.NoError(t, err)
	claims := &jwtlib.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Minute)),
			ID:        uu.NewString(),
		},
		TokenUse: "access",
	}
	raw, err := other.Sign(context.Background(), claims)
	require.NoError(t, err)

	_, err = s.service.VerifyAccessToken(context.Background(), raw, "")
	assert.Equal(t, verify.KindSignatureInvalid, verify.KindOf(err))
}

func TestVerify_Expired(t *testing.T) {
	s := newSuite(t)
	raw, _ := s.mint(t, -time.Minute, "api")

	_, err := s.service.VerifyAccessToken(context.Background(), raw, "api")
	assert.Equal(t, verify.KindExpired, verify.KindOf(err))
}

func TestVerify_Revoked(t *testing.T) {
	s := newSuite(t)
	raw, minted := s.mint(t, time.Minute, "api")

	require.NoError(t, s.store.RevokeJTI(context.Background(), models.RevokedJti{
		JTI:       minted.ID,
		ExpiresAt: minted.ExpiresAt.Time,
		RevokedAt: time.Now(),
	}))

	_, err := s.service.VerifyAccessToken(context.Background(), raw, "api")
	assert.Equal(t, verify.KindRevoked, verify.KindOf(err))
}

func TestVerify_AudienceMismatch(t *testing.T) {
	s := newSuite(t)
	raw, _ := s.mint(t, time.Minute, "api")

	_, err := s.service.VerifyAccessToken(context.Background(), raw, "other-api")
	assert.Equal(t, verify.KindAudienceMismatch, verify.KindOf(err))
}

func TestVerify_NoAudienceCheckWhenUnset(t *testing.T) {
	s := newSuite(t)
	raw, _ := s.mint(t, time.Minute, "api")

	_, err := s.service.VerifyAccessToken(context.Background(), raw, "")
	assert.NoError(t, err)
}
