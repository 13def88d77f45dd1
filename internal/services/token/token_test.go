package token_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	uu "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/oautherr"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/token"
	"authd/internal/storage/memory"
)

const (
	publicClientID       = "spa"
	confidentialClientID = "backend"
	confidentialSecret   = "backend-secret"
	redirectURI          = "https://app.example/cb"
	issuer               = "https://auth.example"
)

type suite struct {
	service *token.Token
	store   *memory.Storage
	signer  *signer.Local
	subject string
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	secretHash, err := bcrypt.GenerateFromPassword([]byte(confidentialSecret), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, store.SaveClient(ctx, &models.Client{
		ID:           publicClientID,
		Name:         "SPA",
		RedirectURIs: []string{redirectURI},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		Scopes:       []string{"openid", "profile", "email"},
		CreatedAt:    time.Now(),
	}))
	require.NoError(t, store.SaveClient(ctx, &models.Client{
		ID:         confidentialClientID,
		Name:       "Backend",
		SecretHash: secretHash,
		GrantTypes: []string{"client_credentials"},
		Scopes:     []string{"reports:read"},
		CreatedAt:  time.Now(),
	}))

	subject := gofakeit.UUID()
	require.NoError(t, store.SaveUser(ctx, &models.User{
		ID:            subject,
		Email:         gofakeit.Email(),
		EmailVerified: true,
		GivenName:     gofakeit.FirstName(),
		FamilyName:    gofakeit.LastName(),
	}))

	sgn, err := signer.NewLocal("")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := token.New(
		log,
		store, store, store, store, store, store,
		sgn,
		metrics.New(),
		issuer,
		15*time.Minute,
		720*time.Hour,
		15*time.Minute,
	)
	return &suite{service: service, store: store, signer: sgn, subject: subject}
}

// mintCode persists an authorization code the way the authorize flow would.
func (s *suite) mintCode(t *testing.T, verifier, scope, nonce string) string {
	t.Helper()

	raw, err := jwtlib.NewOpaqueToken()
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, s.store.SaveAuthCode(context.Background(), &models.AuthorizationCode{
		CodeHash:    jwtlib.HashToken(raw),
		RequestID:   uu.New(),
		ClientID:    publicClientID,
		RedirectURI: redirectURI,
		Subject:     s.subject,
		Scope:       scope,
		Nonce:       nonce,
		PKCE: models.PKCE{
			CodeChallenge: jwtlib.S256Challenge(verifier),
			Method:        "S256",
		},
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}))
	return raw
}

func (s *suite) parseAccess(t *testing.T, raw string) *jwtlib.AccessClaims {
	t.Helper()
	claims := &jwtlib.AccessClaims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, s.signer.Keyfunc())
	require.NoError(t, err)
	return claims
}

func requireOAuthCode(t *testing.T, err error, code oautherr.Code) {
	t.Helper()
	var oe *oautherr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, code, oe.Code)
}

func TestExchangeAuthorizationCode_HappyPath(t *testing.T) {
	s := newSuite(t)
	verifier := gofakeit.LetterN(48)
	nonce := gofakeit.LetterN(16)
	code := s.mintCode(t, verifier, "openid profile email", nonce)

	resp, err := s.service.ExchangeAuthorizationCode(context.Background(), token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.IDToken)
	assert.InDelta(t, (15 * time.Minute).Seconds(), float64(resp.ExpiresIn), 2)

	claims := s.parseAccess(t, resp.AccessToken)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, s.subject, claims.Subject)
	assert.Contains(t, claims.Audience, publicClientID)
	assert.Equal(t, "openid profile email", claims.Scope)
	assert.Equal(t, "access", claims.TokenUse)
	assert.NotEmpty(t, claims.ID)

	idClaims := &jwtlib.IDClaims{}
	_, err = jwtv5.ParseWithClaims(resp.IDToken, idClaims, s.signer.Keyfunc())
	require.NoError(t, err)
	assert.Equal(t, nonce, idClaims.Nonce)
	assert.Equal(t, s.subject, idClaims.Subject)
	assert.NotEmpty(t, idClaims.Email)
	require.NotNil(t, idClaims.EmailVerified)
	assert.True(t, *idClaims.EmailVerified)
}

func TestExchangeAuthorizationCode_SingleUse(t *testing.T) {
	s := newSuite(t)
	verifier := gofakeit.LetterN(48)
	code := s.mintCode(t, verifier, "openid", "")

	p := token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	}
	_, err := s.service.ExchangeAuthorizationCode(context.Background(), p)
	require.NoError(t, err)

	_, err = s.service.ExchangeAuthorizationCode(context.Background(), p)
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)
}

func TestExchangeAuthorizationCode_WrongVerifierConsumesCode(t *testing.T) {
	s := newSuite(t)
	verifier := gofakeit.LetterN(48)
	code := s.mintCode(t, verifier, "openid", "")

	p := token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: "not-the-verifier",
	}
	_, err := s.service.ExchangeAuthorizationCode(context.Background(), p)
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)

	// the failed attempt burned the code: even the right verifier fails now
	p.CodeVerifier = verifier
	_, err = s.service.ExchangeAuthorizationCode(context.Background(), p)
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)
}

func TestExchangeAuthorizationCode_RedirectMismatch(t *testing.T) {
	s := newSuite(t)
	verifier := gofakeit.LetterN(48)
	code := s.mintCode(t, verifier, "openid", "")

	_, err := s.service.ExchangeAuthorizationCode(context.Background(), token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  "https://app.example/other",
		CodeVerifier: verifier,
	})
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)
}

func TestExchangeRefreshToken_RotationAndReuse(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	verifier := gofakeit.LetterN(48)
	code := s.mintCode(t, verifier, "openid profile", "")

	first, err := s.service.ExchangeAuthorizationCode(ctx, token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)

	second, err := s.service.ExchangeRefreshToken(ctx, token.RefreshParams{
		ClientID:     publicClientID,
		RefreshToken: first.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "openid profile", second.Scope)

	// replaying the rotated-out token compromises the family
	_, err = s.service.ExchangeRefreshToken(ctx, token.RefreshParams{
		ClientID:     publicClientID,
		RefreshToken: first.RefreshToken,
	})
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)

	// the still-fresh member is dead too
	_, err = s.service.ExchangeRefreshToken(ctx, token.RefreshParams{
		ClientID:     publicClientID,
		RefreshToken: second.RefreshToken,
	})
	requireOAuthCode(t, err, oautherr.CodeInvalidGrant)
}

func TestExchangeRefreshToken_ScopeCannotWiden(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	verifier := gofakeit.LetterN(48)
	code := s.mintCode(t, verifier, "openid", "")

	first, err := s.service.ExchangeAuthorizationCode(ctx, token.ExchangeCodeParams{
		ClientID:     publicClientID,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)

	_, err = s.service.ExchangeRefreshToken(ctx, token.RefreshParams{
		ClientID:     publicClientID,
		RefreshToken: first.RefreshToken,
		Scope:        "openid email",
	})
	requireOAuthCode(t, err, oautherr.CodeInvalidScope)
}

func TestClientCredentials_HappyPath(t *testing.T) {
	s := newSuite(t)

	resp, err := s.service.ClientCredentials(context.Background(), token.ClientCredentialsParams{
		ClientID:     confidentialClientID,
		ClientSecret: confidentialSecret,
		Scope:        "reports:read",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken)
	assert.Empty(t, resp.IDToken)

	claims := s.parseAccess(t, resp.AccessToken)
	assert.Empty(t, claims.Subject)
	assert.Equal(t, "reports:read", claims.Scope)
}

func TestClientCredentials_WrongSecret(t *testing.T) {
	s := newSuite(t)

	_, err := s.service.ClientCredentials(context.Background(), token.ClientCredentialsParams{
		ClientID:     confidentialClientID,
		ClientSecret: "wrong",
		Scope:        "reports:read",
	})
	requireOAuthCode(t, err, oautherr.CodeInvalidClient)
}

func TestClientCredentials_PublicClientRejected(t *testing.T) {
	s := newSuite(t)

	_, err := s.service.ClientCredentials(context.Background(), token.ClientCredentialsParams{
		ClientID: publicClientID,
		Scope:    "openid",
	})
	requireOAuthCode(t, err, oautherr.CodeUnauthorizedClient)
}

func TestIssueIDToken_RequiresOpenID(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	client, err := s.store.Client(ctx, publicClientID)
	require.NoError(t, err)

	_, err = s.service.IssueIDToken(ctx, s.subject, client, "profile email", "")
	requireOAuthCode(t, err, oautherr.CodeInvalidScope)
}
