package oauth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"authd/internal/http/dto"
	"authd/internal/http/helpers"
	"authd/internal/lib/oautherr"
	"authd/internal/services/revoke"
)

const maxRevokeBodySize = 32 << 10

// RevokeController handles POST /oauth2/revoke.
type RevokeController struct {
	log     *slog.Logger
	service *revoke.Revoke
}

// NewRevokeController creates the controller.
func NewRevokeController(log *slog.Logger, service *revoke.Revoke) *RevokeController {
	return &RevokeController{log: log, service: service}
}

// Revoke invalidates the presented token. Always answers 200 per RFC 7009;
// only a missing token parameter is a client error.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRevokeBodySize)
	defer r.Body.Close()

	rawToken, hint := extractToken(r)
	if rawToken == "" {
		helpers.WriteOAuthError(w, c.log, oautherr.ErrInvalidRequest.WithDescription("token is required"))
		return
	}

	if err := c.service.Revoke(r.Context(), rawToken, hint); err != nil {
		// storage failure: this is the one case the client should retry
		helpers.WriteOAuthError(w, c.log, err)
		return
	}

	helpers.NoStore(w)
	w.WriteHeader(http.StatusOK)
}

// extractToken reads the token from the form body or a JSON body. Cookies
// and the Authorization header are deliberately not consulted: the
// credential to revoke always travels in the request body.
func extractToken(r *http.Request) (rawToken, hint string) {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		var body dto.RevokeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRevokeBodySize)).Decode(&body); err == nil {
			return strings.TrimSpace(body.Token), strings.TrimSpace(body.TokenTypeHint)
		}
		return "", ""
	}
	if err := r.ParseForm(); err != nil {
		return "", ""
	}
	return strings.TrimSpace(r.PostForm.Get("token")),
		strings.TrimSpace(r.PostForm.Get("token_type_hint"))
}
