package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	uu "github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/oautherr"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/token/interfaces"
	"authd/internal/storage"
)

// Token mints and exchanges tokens: the factory itself plus the three
// supported grants. Raw refresh tokens and codes never reach the store;
// only their SHA-256 hashes do.
type Token struct {
	log        *slog.Logger
	clients    interfaces.ClientProvider
	users      interfaces.UserProvider
	codes      interfaces.CodeStorage
	tokens     interfaces.TokenStorage
	denylist   interfaces.DenylistStorage
	requests   interfaces.RequestStorage
	signer     signer.Signer
	metrics    *metrics.Metrics
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	idTTL      time.Duration
}

// New returns a new instance of the Token service
func New(
	log *slog.Logger,
	clients interfaces.ClientProvider,
	users interfaces.UserProvider,
	codes interfaces.CodeStorage,
	tokens interfaces.TokenStorage,
	denylist interfaces.DenylistStorage,
	requests interfaces.RequestStorage,
	s signer.Signer,
	m *metrics.Metrics,
	issuer string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	idTTL time.Duration,
) *Token {
	return &Token{
		log:        log,
		clients:    clients,
		users:      users,
		codes:      codes,
		tokens:     tokens,
		denylist:   denylist,
		requests:   requests,
		signer:     s,
		metrics:    m,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		idTTL:      idTTL,
	}
}

// Response is the token endpoint payload shared by all grants.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

// IssueAccessToken mints a signed access token. Subject is empty for the
// client_credentials grant and the sub claim is omitted entirely then.
func (t *Token) IssueAccessToken(ctx context.Context, subject string, client *models.Client, scope string, permissions []string) (string, *jwtlib.AccessClaims, error) {
	const op = "token.IssueAccessToken"

	now := time.Now()
	claims := &jwtlib.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			Audience:  jwtv5.ClaimStrings{client.ID},
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(t.accessTTLFor(client))),
			ID:        uu.NewString(),
		},
		Scope:       scope,
		Permissions: permissions,
		TokenUse:    "access",
	}
	signed, err := t.signer.Sign(ctx, claims)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return signed, claims, nil
}

// IssueRefreshToken mints an opaque refresh token and persists its hash and
// metadata. A nil familyID starts a new rotation family.
func (t *Token) IssueRefreshToken(ctx context.Context, subject string, client *models.Client, scope string, familyID uu.UUID) (string, *models.RefreshToken, error) {
	const op = "token.IssueRefreshToken"

	raw, err := jwtlib.NewOpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if familyID == uu.Nil {
		familyID = uu.New()
	}
	now := time.Now()
	token := &models.RefreshToken{
		JTI:       uu.New(),
		TokenHash: jwtlib.HashToken(raw),
		FamilyID:  familyID,
		Subject:   subject,
		ClientID:  client.ID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.refreshTTLFor(client)),
	}
	if err := t.tokens.SaveRefreshToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, token, nil
}

// IssueIDToken mints an OIDC ID token. The granted scope must contain
// openid; profile and email claims are included only when their scope was
// granted.
func (t *Token) IssueIDToken(ctx context.Context, subject string, client *models.Client, scope string, nonce string) (string, error) {
	const op = "token.IssueIDToken"

	scopes := strings.Fields(scope)
	if !slices.Contains(scopes, "openid") {
		return "", oautherr.ErrInvalidScope.WithDescription("openid scope required for an id token")
	}
	user, err := t.users.UserByID(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	claims := &jwtlib.IDClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			Audience:  jwtv5.ClaimStrings{client.ID},
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(t.idTTL)),
			ID:        uu.NewString(),
		},
		Nonce:    nonce,
		TokenUse: "id",
	}
	if slices.Contains(scopes, "profile") {
		claims.GivenName = user.GivenName
		claims.FamilyName = user.FamilyName
		claims.Name = strings.TrimSpace(user.GivenName + " " + user.FamilyName)
	}
	if slices.Contains(scopes, "email") {
		claims.Email = user.Email
		verified := user.EmailVerified
		claims.EmailVerified = &verified
	}

	signed, err := t.signer.Sign(ctx, claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ExchangeCodeParams are the form parameters of the authorization_code grant.
type ExchangeCodeParams struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// ExchangeAuthorizationCode redeems a single-use code for tokens. The code
// is consumed before any binding check runs, so a failed PKCE or
// redirect_uri verification still burns it.
func (t *Token) ExchangeAuthorizationCode(ctx context.Context, p ExchangeCodeParams) (*Response, error) {
	const op = "token.ExchangeAuthorizationCode"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", p.ClientID))

	client, err := t.authenticateClient(ctx, p.ClientID, p.ClientSecret, "authorization_code")
	if err != nil {
		return nil, err
	}

	code, err := t.codes.ConsumeAuthCode(ctx, jwtlib.HashToken(p.Code))
	if err != nil {
		if errors.Is(err, storage.ErrCodeNotFound) || errors.Is(err, storage.ErrCodeConsumed) {
			logger.Warn("authorization code rejected", slog.String("error", err.Error()))
			return nil, oautherr.ErrInvalidGrant.WithCause(err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	switch {
	case code.ClientID != client.ID:
		logger.Warn("authorization code presented by wrong client")
		return nil, oautherr.ErrInvalidGrant
	case code.Expired(now):
		return nil, oautherr.ErrInvalidGrant
	case code.RedirectURI != p.RedirectURI:
		return nil, oautherr.ErrInvalidGrant
	}
	if code.PKCE.CodeChallenge != "" {
		if p.CodeVerifier == "" || !jwtlib.VerifyS256(p.CodeVerifier, code.PKCE.CodeChallenge) {
			logger.Warn("pkce verification failed, code consumed")
			return nil, oautherr.ErrInvalidGrant
		}
	} else if p.CodeVerifier != "" {
		return nil, oautherr.ErrInvalidGrant
	}

	t.markExchanged(ctx, logger, code.RequestID)

	resp, err := t.mintPair(ctx, code.Subject, client, code.Scope, code.Nonce, uu.Nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.metrics.TokensIssuedTotal.WithLabelValues("access", "authorization_code").Inc()
	logger.Info("authorization code exchanged", slog.String("subject", code.Subject))
	return resp, nil
}

// RefreshParams are the form parameters of the refresh_token grant.
type RefreshParams struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// ExchangeRefreshToken rotates a refresh token. Presenting an
// already-rotated member of a family is treated as theft: the whole family
// is revoked and every member's jti denylisted.
func (t *Token) ExchangeRefreshToken(ctx context.Context, p RefreshParams) (*Response, error) {
	const op = "token.ExchangeRefreshToken"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", p.ClientID))

	client, err := t.authenticateClient(ctx, p.ClientID, p.ClientSecret, "refresh_token")
	if err != nil {
		return nil, err
	}

	hash := jwtlib.HashToken(p.RefreshToken)
	old, err := t.tokens.MarkRotated(ctx, hash)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenRevoked):
			return nil, t.onReuse(ctx, logger, hash)
		case errors.Is(err, storage.ErrTokenNotFound):
			return nil, oautherr.ErrInvalidGrant
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if old.ClientID != client.ID || old.Expired(time.Now()) {
		return nil, oautherr.ErrInvalidGrant
	}

	scope := old.Scope
	if p.Scope != "" {
		requested := strings.Fields(p.Scope)
		granted := strings.Fields(old.Scope)
		for _, s := range requested {
			if !slices.Contains(granted, s) {
				return nil, oautherr.ErrInvalidScope.WithDescription("scope exceeds the original grant")
			}
		}
		scope = strings.Join(requested, " ")
	}

	resp, err := t.mintPair(ctx, old.Subject, client, scope, "", old.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.metrics.TokensIssuedTotal.WithLabelValues("access", "refresh_token").Inc()
	logger.Info("refresh token rotated", slog.String("family_id", old.FamilyID.String()))
	return resp, nil
}

// ClientCredentialsParams are the form parameters of the client_credentials grant.
type ClientCredentialsParams struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// ClientCredentials mints an access token for a confidential client acting
// on its own behalf. No subject, no refresh token, no id token.
func (t *Token) ClientCredentials(ctx context.Context, p ClientCredentialsParams) (*Response, error) {
	const op = "token.ClientCredentials"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", p.ClientID))

	client, err := t.authenticateClient(ctx, p.ClientID, p.ClientSecret, "client_credentials")
	if err != nil {
		return nil, err
	}
	if !client.Confidential() {
		return nil, oautherr.ErrUnauthorizedClient.WithDescription("client_credentials requires a confidential client")
	}

	scopes := strings.Fields(p.Scope)
	if !client.AllowsScope(scopes) {
		return nil, oautherr.ErrInvalidScope
	}
	scope := strings.Join(scopes, " ")

	access, claims, err := t.IssueAccessToken(ctx, "", client, scope, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.metrics.TokensIssuedTotal.WithLabelValues("access", "client_credentials").Inc()
	logger.Info("client credentials grant issued")

	return &Response{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(claims.ExpiresAt.Time).Seconds()),
		Scope:       scope,
	}, nil
}

// mintPair issues the access/refresh pair plus, when openid was granted, the
// id token.
func (t *Token) mintPair(ctx context.Context, subject string, client *models.Client, scope, nonce string, familyID uu.UUID) (*Response, error) {
	access, claims, err := t.IssueAccessToken(ctx, subject, client, scope, nil)
	if err != nil {
		return nil, err
	}
	refresh, _, err := t.IssueRefreshToken(ctx, subject, client, scope, familyID)
	if err != nil {
		return nil, err
	}
	resp := &Response{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(claims.ExpiresAt.Time).Seconds()),
		RefreshToken: refresh,
		Scope:        scope,
	}
	if slices.Contains(strings.Fields(scope), "openid") {
		idToken, err := t.IssueIDToken(ctx, subject, client, scope, nonce)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}
	return resp, nil
}

// onReuse handles a rotation of an already-revoked token: the family is
// compromised, so every member is revoked and denylisted.
func (t *Token) onReuse(ctx context.Context, logger *slog.Logger, tokenHash string) error {
	reused, err := t.tokens.RefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		return fmt.Errorf("token.onReuse: %w", err)
	}
	revoked, err := t.tokens.RevokeFamily(ctx, reused.FamilyID)
	if err != nil {
		return fmt.Errorf("token.onReuse: %w", err)
	}
	now := time.Now()
	for _, member := range revoked {
		entry := models.RevokedJti{
			JTI:       member.JTI.String(),
			ExpiresAt: member.ExpiresAt,
			RevokedAt: now,
		}
		if err := t.denylist.RevokeJTI(ctx, entry); err != nil {
			return fmt.Errorf("token.onReuse: %w", err)
		}
	}
	t.metrics.ReuseDetectedTotal.Inc()
	logger.Warn("refresh token reuse detected, family revoked",
		slog.String("family_id", reused.FamilyID.String()),
		slog.Int("members", len(revoked)),
	)
	return oautherr.ErrInvalidGrant.WithDescription("refresh token reuse detected")
}

// markExchanged moves the originating authorization request to its terminal
// state. Best effort: the request row may already have expired.
func (t *Token) markExchanged(ctx context.Context, logger *slog.Logger, requestID uu.UUID) {
	if requestID == uu.Nil {
		return
	}
	req, err := t.requests.AuthRequest(ctx, requestID)
	if err != nil {
		if !errors.Is(err, storage.ErrRequestNotFound) {
			logger.Warn("failed to load authorization request", slog.String("error", err.Error()))
		}
		return
	}
	req.Status = models.StateExchanged
	if err := t.requests.UpdateAuthRequest(ctx, req); err != nil && !errors.Is(err, storage.ErrRequestNotFound) {
		logger.Warn("failed to mark authorization request exchanged", slog.String("error", err.Error()))
	}
}

// authenticateClient resolves the client and checks its credentials and
// grant registration. Confidential clients must present their secret;
// public clients must not.
func (t *Token) authenticateClient(ctx context.Context, clientID, clientSecret, grantType string) (*models.Client, error) {
	const op = "token.authenticateClient"

	if clientID == "" {
		return nil, oautherr.ErrInvalidClient
	}
	client, err := t.clients.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, oautherr.ErrInvalidClient
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if client.Confidential() {
		if err := bcrypt.CompareHashAndPassword(client.SecretHash, []byte(clientSecret)); err != nil {
			return nil, oautherr.ErrInvalidClient
		}
	} else if clientSecret != "" {
		return nil, oautherr.ErrInvalidClient
	}
	if !client.AllowsGrantType(grantType) {
		return nil, oautherr.ErrUnauthorizedClient
	}
	return client, nil
}

func (t *Token) accessTTLFor(client *models.Client) time.Duration {
	if client.AccessTTL != nil {
		return *client.AccessTTL
	}
	return t.accessTTL
}

func (t *Token) refreshTTLFor(client *models.Client) time.Duration {
	if client.RefreshTTL != nil {
		return *client.RefreshTTL
	}
	return t.refreshTTL
}
