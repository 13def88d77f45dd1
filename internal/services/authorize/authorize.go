package authorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	uu "github.com/google/uuid"

	"authd/internal/domain/models"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/oautherr"
	"authd/internal/services/authorize/interfaces"
	"authd/internal/storage"
)

// Authorize drives an authorization-code transaction from the initial
// redirect through consent to a minted single-use code. Subject
// authentication itself happens outside; the flow receives an already
// authenticated subject id.
type Authorize struct {
	log        *slog.Logger
	clients    interfaces.ClientProvider
	requests   interfaces.RequestStorage
	codes      interfaces.CodeStorage
	consents   interfaces.ConsentStorage
	requestTTL time.Duration
	codeTTL    time.Duration
}

// New returns a new instance of the Authorize service
func New(
	log *slog.Logger,
	clients interfaces.ClientProvider,
	requests interfaces.RequestStorage,
	codes interfaces.CodeStorage,
	consents interfaces.ConsentStorage,
	requestTTL time.Duration,
	codeTTL time.Duration,
) *Authorize {
	return &Authorize{
		log:        log,
		clients:    clients,
		requests:   requests,
		codes:      codes,
		consents:   consents,
		requestTTL: requestTTL,
		codeTTL:    codeTTL,
	}
}

// BeginParams are the query parameters of the authorization endpoint.
type BeginParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Begin validates the incoming authorization request and persists it in
// state INITIATED. A redirect_uri that is absent or not registered for the
// client fails here, before any redirect can happen.
func (a *Authorize) Begin(ctx context.Context, p BeginParams) (*models.AuthorizationRequest, error) {
	const op = "authorize.Begin"
	logger := a.log.With(slog.String("op", op), slog.String("client_id", p.ClientID))

	client, err := a.clients.Client(ctx, p.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, oautherr.ErrInvalidRequest.WithDescription("unknown client")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.RedirectURI == "" || !client.AllowsRedirectURI(p.RedirectURI) {
		logger.Warn("redirect_uri not registered", slog.String("redirect_uri", p.RedirectURI))
		return nil, oautherr.ErrInvalidRequest.WithDescription("redirect_uri is not registered for this client")
	}
	if p.ResponseType != "code" {
		return nil, oautherr.ErrInvalidRequest.WithDescription("only response_type=code is supported")
	}
	if !client.AllowsGrantType("authorization_code") {
		return nil, oautherr.ErrUnauthorizedClient
	}

	scopes := strings.Fields(p.Scope)
	if !client.AllowsScope(scopes) {
		return nil, oautherr.ErrInvalidScope
	}

	switch p.CodeChallengeMethod {
	case "S256":
	case "":
		if p.CodeChallenge != "" {
			return nil, oautherr.ErrInvalidRequest.WithDescription("code_challenge_method is required")
		}
	default:
		// "plain" included: only S256 challenges are accepted
		return nil, oautherr.ErrInvalidRequest.WithDescription("code_challenge_method must be S256")
	}
	pkceRequired := !client.Confidential() || client.RequirePKCE
	if pkceRequired && p.CodeChallenge == "" {
		return nil, oautherr.ErrInvalidRequest.WithDescription("code_challenge is required")
	}

	now := time.Now()
	req := &models.AuthorizationRequest{
		ID:          uu.New(),
		ClientID:    client.ID,
		RedirectURI: p.RedirectURI,
		Scope:       strings.Join(scopes, " "),
		State:       p.State,
		Nonce:       p.Nonce,
		PKCE: models.PKCE{
			CodeChallenge: p.CodeChallenge,
			Method:        p.CodeChallengeMethod,
		},
		Status:    models.StateInitiated,
		CreatedAt: now,
		ExpiresAt: now.Add(a.requestTTL),
	}
	if err := a.requests.SaveAuthRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("authorization request initiated", slog.String("request_id", req.ID.String()))
	return req, nil
}

// Authenticate binds the externally authenticated subject to the request and
// reports whether interactive consent is still needed. A consent grant
// already covering every requested scope skips the consent step.
func (a *Authorize) Authenticate(ctx context.Context, requestID uu.UUID, subject string) (req *models.AuthorizationRequest, consentNeeded bool, err error) {
	const op = "authorize.Authenticate"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", requestID.String()))

	req, err = a.loadActive(ctx, op, requestID)
	if err != nil {
		return nil, false, err
	}
	if req.Status != models.StateInitiated {
		return nil, false, oautherr.ErrInvalidRequest.WithDescription("authorization request already processed")
	}

	req.Subject = subject
	req.Status = models.StateAuthenticated
	consentNeeded = true

	grant, err := a.consents.Consent(ctx, subject, req.ClientID)
	if err != nil && !errors.Is(err, storage.ErrConsentNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if err == nil && grant.Covers(strings.Fields(req.Scope)) {
		req.Status = models.StateConsented
		consentNeeded = false
		logger.Info("consent satisfied by existing grant")
	}

	if err := a.requests.UpdateAuthRequest(ctx, req); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("subject authenticated", slog.Bool("consent_needed", consentNeeded))
	return req, consentNeeded, nil
}

// Approve records the subject's consent decision (persisting a grant for the
// next visit), mints the single-use authorization code and returns the
// redirect the user agent should be sent to.
func (a *Authorize) Approve(ctx context.Context, requestID uu.UUID) (redirect string, err error) {
	const op = "authorize.Approve"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", requestID.String()))

	req, err := a.loadActive(ctx, op, requestID)
	if err != nil {
		return "", err
	}
	switch req.Status {
	case models.StateAuthenticated, models.StateConsented:
	default:
		return "", oautherr.ErrInvalidRequest.WithDescription("authorization request is not awaiting consent")
	}

	if req.Status == models.StateAuthenticated {
		grant := &models.ConsentGrant{
			Subject:   req.Subject,
			ClientID:  req.ClientID,
			Scopes:    strings.Fields(req.Scope),
			GrantedAt: time.Now(),
		}
		if err := a.consents.SaveConsent(ctx, grant); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		req.Status = models.StateConsented
	}

	rawCode, err := jwtlib.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	now := time.Now()
	code := &models.AuthorizationCode{
		CodeHash:    jwtlib.HashToken(rawCode),
		RequestID:   req.ID,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Subject:     req.Subject,
		Scope:       req.Scope,
		Nonce:       req.Nonce,
		PKCE:        req.PKCE,
		ExpiresAt:   now.Add(a.codeTTL),
		CreatedAt:   now,
	}
	if err := a.codes.SaveAuthCode(ctx, code); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req.Status = models.StateCodeIssued
	if err := a.requests.UpdateAuthRequest(ctx, req); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("authorization code issued", slog.String("subject", req.Subject))

	return redirectWith(req.RedirectURI, req.State, url.Values{"code": {rawCode}}), nil
}

// Deny moves the request to DENIED and returns the error redirect.
func (a *Authorize) Deny(ctx context.Context, requestID uu.UUID) (redirect string, err error) {
	const op = "authorize.Deny"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", requestID.String()))

	req, err := a.loadActive(ctx, op, requestID)
	if err != nil {
		return "", err
	}
	req.Status = models.StateDenied
	if err := a.requests.UpdateAuthRequest(ctx, req); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("authorization denied by resource owner")

	return redirectWith(req.RedirectURI, req.State, url.Values{"error": {string(oautherr.CodeAccessDenied)}}), nil
}

// Abandon drops a pending authorization request, e.g. when the user agent
// closes the login page. Removing an already removed request is not an error.
func (a *Authorize) Abandon(ctx context.Context, requestID uu.UUID) error {
	const op = "authorize.Abandon"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", requestID.String()))

	if err := a.requests.RemoveAuthRequest(ctx, requestID); err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("authorization request abandoned")
	return nil
}

// loadActive fetches a request and fails closed if it is missing or expired.
// Expired requests are moved to EXPIRED before being rejected.
func (a *Authorize) loadActive(ctx context.Context, op string, requestID uu.UUID) (*models.AuthorizationRequest, error) {
	req, err := a.requests.AuthRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			return nil, oautherr.ErrInvalidRequest.WithDescription("unknown or expired authorization request")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.Expired(time.Now()) {
		req.Status = models.StateExpired
		if updErr := a.requests.UpdateAuthRequest(ctx, req); updErr != nil && !errors.Is(updErr, storage.ErrRequestNotFound) {
			return nil, fmt.Errorf("%s: %w", op, updErr)
		}
		return nil, oautherr.ErrInvalidRequest.WithDescription("authorization request expired")
	}
	return req, nil
}

// redirectWith appends response parameters (and the client's state, when
// present) to the validated redirect uri.
func redirectWith(redirectURI, state string, params url.Values) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		// the uri matched a registered one at Begin; treat as opaque
		return redirectURI
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
