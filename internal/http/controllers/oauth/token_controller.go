// Package oauth holds the controllers of the OAuth 2.1 endpoints.
package oauth

import (
	"log/slog"
	"net/http"
	"strings"

	"authd/internal/http/helpers"
	"authd/internal/lib/oautherr"
	"authd/internal/services/token"
)

const maxTokenBodySize = 64 << 10

// TokenController handles POST /oauth2/token.
type TokenController struct {
	log     *slog.Logger
	service *token.Token
}

// NewTokenController creates the controller.
func NewTokenController(log *slog.Logger, service *token.Token) *TokenController {
	return &TokenController{log: log, service: service}
}

// Token dispatches on grant_type: authorization_code, refresh_token,
// client_credentials.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxTokenBodySize)
	if err := r.ParseForm(); err != nil {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("invalid form data"))
		return
	}

	clientID, clientSecret := clientCredentials(r)
	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))

	var resp *token.Response
	var err error
	switch grantType {
	case "authorization_code":
		resp, err = c.service.ExchangeAuthorizationCode(ctx, token.ExchangeCodeParams{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         strings.TrimSpace(r.PostForm.Get("code")),
			RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
			CodeVerifier: strings.TrimSpace(r.PostForm.Get("code_verifier")),
		})
	case "refresh_token":
		resp, err = c.service.ExchangeRefreshToken(ctx, token.RefreshParams{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RefreshToken: strings.TrimSpace(r.PostForm.Get("refresh_token")),
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		})
	case "client_credentials":
		resp, err = c.service.ClientCredentials(ctx, token.ClientCredentialsParams{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		})
	default:
		helpers.WriteOAuthError(w, c.log, oautherr.ErrUnsupportedGrantType)
		return
	}
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// clientCredentials reads client authentication from HTTP Basic auth first,
// falling back to the form body.
func clientCredentials(r *http.Request) (clientID, clientSecret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")),
		strings.TrimSpace(r.PostForm.Get("client_secret"))
}
