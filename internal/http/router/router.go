// Package router aggregates the HTTP routes of the engine.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authd/internal/http/controllers/oauth"
	"authd/internal/http/controllers/oidc"
)

// Deps contains the controllers the router mounts.
type Deps struct {
	Authorize *oauth.AuthorizeController
	Token     *oauth.TokenController
	Revoke    *oauth.RevokeController
	OIDC      *oidc.Controllers
}

// New builds the chi router with all routes registered.
func New(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/oauth2", func(r chi.Router) {
		r.Get("/authorize", deps.Authorize.Begin)
		r.Post("/authorize/{requestID}/authenticate", deps.Authorize.Authenticate)
		r.Post("/authorize/{requestID}/decision", deps.Authorize.Decide)
		r.Delete("/authorize/{requestID}", deps.Authorize.Abandon)
		r.Post("/token", deps.Token.Token)
		r.Post("/revoke", deps.Revoke.Revoke)
	})

	r.Get("/oidc/userinfo", deps.OIDC.Userinfo)
	r.Post("/oidc/userinfo", deps.OIDC.Userinfo)
	r.Get("/jwks.json", deps.OIDC.JWKS)
	r.Get("/.well-known/openid-configuration", deps.OIDC.Discovery)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
