// Package oidc holds the controllers of the OpenID Connect surface:
// userinfo, the published key set and the discovery document.
package oidc

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"authd/internal/http/helpers"
	"authd/internal/lib/signer"
	"authd/internal/services/userinfo"
	"authd/internal/storage/redis"
)

// Controllers bundles the OIDC endpoints.
type Controllers struct {
	log      *slog.Logger
	userinfo *userinfo.Userinfo
	signer   signer.Signer
	cache    *redis.Cache
	issuer   string
}

// New creates the OIDC controllers. cache may be nil.
func New(log *slog.Logger, ui *userinfo.Userinfo, s signer.Signer, cache *redis.Cache, issuer string) *Controllers {
	return &Controllers{
		log:      log,
		userinfo: ui,
		signer:   s,
		cache:    cache,
		issuer:   issuer,
	}
}

// Userinfo handles GET/POST /oidc/userinfo behind a Bearer token.
func (c *Controllers) Userinfo(w http.ResponseWriter, r *http.Request) {
	claims, err := c.userinfo.Claims(r.Context(), helpers.BearerToken(r))
	if err != nil {
		helpers.WriteBearerError(w, c.log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, claims)
}

// JWKS handles GET /jwks.json. The serialized document is cached so busy
// resource servers do not hit the signer backend on every fetch.
func (c *Controllers) JWKS(w http.ResponseWriter, r *http.Request) {
	if c.cache != nil {
		if document, err := c.cache.JWKS(r.Context()); err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(document)
			return
		}
	}

	set, err := c.signer.JWKS(r.Context())
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	document, err := json.Marshal(set)
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	if c.cache != nil {
		if err := c.cache.SaveJWKS(r.Context(), document); err != nil {
			c.log.Warn("failed to cache jwks", slog.String("error", err.Error()))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(document)
}

// discoveryDocument is the subset of OIDC discovery metadata the engine serves.
type discoveryDocument struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	ScopesSupported               []string `json:"scopes_supported"`
	IDTokenSigningAlgsSupported   []string `json:"id_token_signing_alg_values_supported"`
	SubjectTypesSupported         []string `json:"subject_types_supported"`
}

// Discovery handles GET /.well-known/openid-configuration.
func (c *Controllers) Discovery(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, discoveryDocument{
		Issuer:                        c.issuer,
		AuthorizationEndpoint:         c.issuer + "/oauth2/authorize",
		TokenEndpoint:                 c.issuer + "/oauth2/token",
		UserinfoEndpoint:              c.issuer + "/oidc/userinfo",
		RevocationEndpoint:            c.issuer + "/oauth2/revoke",
		JWKSURI:                       c.issuer + "/jwks.json",
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token", "client_credentials"},
		CodeChallengeMethodsSupported: []string{"S256"},
		ScopesSupported:               []string{"openid", "profile", "email"},
		IDTokenSigningAlgsSupported:   []string{"RS256"},
		SubjectTypesSupported:         []string{"public"},
	})
}
