package oauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	uu "github.com/google/uuid"

	"authd/internal/http/dto"
	"authd/internal/http/helpers"
	"authd/internal/lib/oautherr"
	"authd/internal/services/authorize"
)

// AuthorizeController drives the authorization-code front channel. Subject
// authentication is external: the login collaborator calls back with the
// request id once the user is known.
type AuthorizeController struct {
	log     *slog.Logger
	service *authorize.Authorize
}

// NewAuthorizeController creates the controller.
func NewAuthorizeController(log *slog.Logger, service *authorize.Authorize) *AuthorizeController {
	return &AuthorizeController{log: log, service: service}
}

// Begin handles GET /oauth2/authorize
func (c *AuthorizeController) Begin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := c.service.Begin(r.Context(), authorize.BeginParams{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.AuthorizationRequestResponse{
		RequestID: req.ID.String(),
		Status:    string(req.Status),
		ExpiresAt: req.ExpiresAt,
	})
}

// Authenticate handles POST /oauth2/authorize/{requestID}/authenticate
func (c *AuthorizeController) Authenticate(w http.ResponseWriter, r *http.Request) {
	requestID, err := uu.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("malformed request id"))
		return
	}
	var body dto.AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Subject) == "" {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("subject is required"))
		return
	}

	req, consentNeeded, err := c.service.Authenticate(r.Context(), requestID, strings.TrimSpace(body.Subject))
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.AuthenticateResponse{
		Status:        string(req.Status),
		ConsentNeeded: consentNeeded,
	})
}

// Abandon handles DELETE /oauth2/authorize/{requestID}
func (c *AuthorizeController) Abandon(w http.ResponseWriter, r *http.Request) {
	requestID, err := uu.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("malformed request id"))
		return
	}
	if err := c.service.Abandon(r.Context(), requestID); err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decide handles POST /oauth2/authorize/{requestID}/decision
func (c *AuthorizeController) Decide(w http.ResponseWriter, r *http.Request) {
	requestID, err := uu.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("malformed request id"))
		return
	}
	var body dto.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("malformed decision body"))
		return
	}

	var redirect string
	if body.Approved {
		redirect, err = c.service.Approve(r.Context(), requestID)
	} else {
		redirect, err = c.service.Deny(r.Context(), requestID)
	}
	if err != nil {
		helpers.WriteOAuthError(w, c.log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.DecisionResponse{RedirectTo: redirect})
}
