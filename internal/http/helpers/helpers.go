package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"authd/internal/lib/oautherr"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteOAuthError maps any error onto the RFC 6749 error body. Unknown
// errors collapse into server_error so internals never reach the client.
func WriteOAuthError(w http.ResponseWriter, log *slog.Logger, err error) {
	oe := oautherr.From(err)
	if oe.Status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("error", err.Error()))
	}
	WriteJSON(w, oe.Status, oe)
}

// WriteBearerError answers a protected-resource failure per RFC 6750: the
// error lands in the WWW-Authenticate header as well as the body.
func WriteBearerError(w http.ResponseWriter, log *slog.Logger, err error) {
	oe := oautherr.From(err)
	if oe.Status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("error", err.Error()))
	}
	w.Header().Set("WWW-Authenticate", `Bearer error="`+string(oe.Code)+`"`)
	WriteJSON(w, oe.Status, oe)
}

// BearerToken extracts the token from the Authorization header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

// NoStore sets the cache headers required on token and revocation responses.
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
