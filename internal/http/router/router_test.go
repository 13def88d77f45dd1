package router_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	"authd/internal/http/controllers/oauth"
	"authd/internal/http/controllers/oidc"
	"authd/internal/http/router"
	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/authorize"
	"authd/internal/services/revoke"
	"authd/internal/services/token"
	"authd/internal/services/userinfo"
	"authd/internal/services/verify"
	"authd/internal/storage/memory"
)

const (
	clientID    = "spa"
	redirectURI = "https://app.example/cb"
	issuer      = "https://auth.example"
)

type env struct {
	mux     *chi.Mux
	store   *memory.Storage
	subject string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	require.NoError(t, store.SaveClient(ctx, &models.Client{
		ID:           clientID,
		Name:         "SPA",
		RedirectURIs: []string{redirectURI},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		Scopes:       []string{"openid", "profile", "email"},
		CreatedAt:    time.Now(),
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
	m := metrics.New()

	authorizeService := authorize.New(log, store, store, store, store, 10*time.Minute, 5*time.Minute)
	tokenService := token.New(log, store, store, store, store, store, store, sgn, m,
		issuer, 15*time.Minute, 720*time.Hour, 15*time.Minute)
	verifyService := verify.New(log, sgn, store, m)
	revokeService := revoke.New(log, store, store, sgn, m)
	userinfoService := userinfo.New(log, verifyService, store)

	mux := router.New(router.Deps{
		Authorize: oauth.NewAuthorizeController(log, authorizeService),
		Token:     oauth.NewTokenController(log, tokenService),
		Revoke:    oauth.NewRevokeController(log, revokeService),
		OIDC:      oidc.New(log, userinfoService, sgn, nil, issuer),
	})

	return &env{mux: mux, store: store, subject: subject}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *env) postJSON(t *testing.T, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *env) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// authorizeCode drives the full front channel and returns the raw code.
func (e *env) authorizeCode(t *testing.T, verifier, scope, state string) string {
	t.Helper()

	q := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"scope":                 {scope},
		"state":                 {state},
		"nonce":                 {gofakeit.LetterN(16)},
		"code_challenge":        {jwtlib.S256Challenge(verifier)},
		"code_challenge_method": {"S256"},
	}
	w := e.do(httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = e.postJSON(t, "/oauth2/authorize/"+created.RequestID+"/authenticate",
		`{"subject":"`+e.subject+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.postJSON(t, "/oauth2/authorize/"+created.RequestID+"/decision", `{"approved":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var decision struct {
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))

	u, err := url.Parse(decision.RedirectTo)
	require.NoError(t, err)
	require.Equal(t, state, u.Query().Get("state"))
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestEndToEnd_CodeTokenUserinfoRevoke(t *testing.T) {
	e := newEnv(t)

	verifier := gofakeit.LetterN(48)
	code := e.authorizeCode(t, verifier, "openid email", gofakeit.LetterN(12))

	w := e.postForm(t, "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		TokenType    string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEmpty(t, tokens.IDToken)

	// userinfo with the fresh access token
	req := httptest.NewRequest(http.MethodGet, "/oidc/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w = e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claims map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claims))
	assert.Equal(t, e.subject, claims["sub"])
	assert.NotEmpty(t, claims["email"])
	assert.NotContains(t, claims, "given_name")

	// revoke the access token; RFC 7009 answers 200 with an empty body
	w = e.postForm(t, "/oauth2/revoke", url.Values{
		"token":           {tokens.AccessToken},
		"token_type_hint": {"access_token"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// the denylisted token no longer reaches userinfo
	req = httptest.NewRequest(http.MethodGet, "/oidc/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w = e.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestToken_ReusedCodeRejected(t *testing.T) {
	e := newEnv(t)

	verifier := gofakeit.LetterN(48)
	code := e.authorizeCode(t, verifier, "openid", gofakeit.LetterN(12))

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	}
	w := e.postForm(t, "/oauth2/token", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.postForm(t, "/oauth2/token", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	e := newEnv(t)

	w := e.postForm(t, "/oauth2/token", url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_grant_type")
}

func TestRevoke_MissingTokenParameter(t *testing.T) {
	e := newEnv(t)

	w := e.postForm(t, "/oauth2/revoke", url.Values{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestUserinfo_MissingBearer(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/oidc/userinfo", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWKSAndDiscovery(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var keySet struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &keySet))
	require.NotEmpty(t, keySet.Keys)
	assert.Equal(t, "RS256", keySet.Keys[0]["alg"])

	w = e.do(httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Issuer               string   `json:"issuer"`
		CodeChallengeMethods []string `json:"code_challenge_methods_supported"`
		GrantTypesSupported  []string `json:"grant_types_supported"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, issuer, doc.Issuer)
	assert.Equal(t, []string{"S256"}, doc.CodeChallengeMethods)
	assert.Contains(t, doc.GrantTypesSupported, "client_credentials")
}
