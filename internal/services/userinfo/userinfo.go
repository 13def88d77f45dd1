package userinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"authd/internal/domain/models"
	"authd/internal/lib/oautherr"
	"authd/internal/services/userinfo/interfaces"
	"authd/internal/storage"
)

// Project maps granted scopes onto the subject's claims. Pure and
// deterministic: same scopes and user always produce the same map, and no
// claim leaks without its gating scope.
func Project(scopes []string, user models.User) map[string]any {
	claims := make(map[string]any)
	for _, scope := range scopes {
		switch scope {
		case "openid":
			claims["sub"] = user.ID
		case "profile":
			claims["given_name"] = user.GivenName
			claims["family_name"] = user.FamilyName
			claims["name"] = strings.TrimSpace(user.GivenName + " " + user.FamilyName)
		case "email":
			claims["email"] = user.Email
			claims["email_verified"] = user.EmailVerified
		}
	}
	return claims
}

// Userinfo answers the OIDC userinfo endpoint from a Bearer access token.
type Userinfo struct {
	log      *slog.Logger
	verifier interfaces.TokenVerifier
	users    interfaces.UserProvider
}

// New returns a new instance of the Userinfo service
func New(log *slog.Logger, verifier interfaces.TokenVerifier, users interfaces.UserProvider) *Userinfo {
	return &Userinfo{log: log, verifier: verifier, users: users}
}

// Claims verifies the presented token and projects the subject's claims.
// A missing or failed token maps to invalid_token (401); a valid token
// without the openid scope maps to insufficient_scope (403).
func (u *Userinfo) Claims(ctx context.Context, rawToken string) (map[string]any, error) {
	const op = "userinfo.Claims"
	logger := u.log.With(slog.String("op", op))

	if rawToken == "" {
		return nil, oautherr.ErrInvalidToken.WithDescription("bearer token required")
	}
	claims, err := u.verifier.VerifyAccessToken(ctx, rawToken, "")
	if err != nil {
		logger.Info("access token rejected", slog.String("error", err.Error()))
		return nil, oautherr.ErrInvalidToken.WithCause(err)
	}

	scopes := strings.Fields(claims.Scope)
	if !slices.Contains(scopes, "openid") {
		return nil, oautherr.ErrInsufficientScope.WithDescription("openid scope required")
	}

	user, err := u.users.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, oautherr.ErrInvalidToken.WithDescription("token subject no longer exists")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return Project(scopes, user), nil
}
