package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	jwtlib "authd/internal/lib/jwt"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/verify/interfaces"
)

// Kind tags a verification failure. The checks run in a fixed order and
// short-circuit, so exactly one kind describes any rejected token.
type Kind string

const (
	KindMalformed        Kind = "malformed"
	KindSignatureInvalid Kind = "signature_invalid"
	KindExpired          Kind = "expired"
	KindRevoked          Kind = "revoked"
	KindAudienceMismatch Kind = "audience_mismatch"
)

// Error is a tagged verification failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("token %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the failure kind, or "" for non-verification errors.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// Verify checks presented tokens. It holds no mutable state beyond the
// denylist storage, so concurrent use from resource servers is safe.
type Verify struct {
	log      *slog.Logger
	signer   signer.Signer
	denylist interfaces.DenylistChecker
	metrics  *metrics.Metrics
}

// New returns a new instance of the Verify service
func New(
	log *slog.Logger,
	s signer.Signer,
	denylist interfaces.DenylistChecker,
	m *metrics.Metrics,
) *Verify {
	return &Verify{
		log:      log,
		signer:   s,
		denylist: denylist,
		metrics:  m,
	}
}

// VerifyAccessToken runs the ordered checks: structure, signature (RS256
// only), expiry, denylist, then audience when expectedAud is non-empty.
// The first failing check decides the result.
func (v *Verify) VerifyAccessToken(ctx context.Context, raw string, expectedAud string) (*jwtlib.AccessClaims, error) {
	const op = "verify.VerifyAccessToken"
	logger := v.log.With(slog.String("op", op))

	claims := &jwtlib.AccessClaims{}
	_, err := jwtv5.ParseWithClaims(
		raw,
		claims,
		v.signer.Keyfunc(),
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		kind := classifyParseError(err)
		v.metrics.VerificationsTotal.WithLabelValues(string(kind)).Inc()
		logger.Info("token rejected", slog.String("outcome", string(kind)))
		return nil, &Error{Kind: kind, cause: err}
	}

	revoked, err := v.denylist.IsJTIRevoked(ctx, claims.ID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		v.metrics.VerificationsTotal.WithLabelValues(string(KindRevoked)).Inc()
		logger.Info("token rejected", slog.String("outcome", string(KindRevoked)))
		return nil, &Error{Kind: KindRevoked}
	}

	if expectedAud != "" && !slices.Contains(claims.Audience, expectedAud) {
		v.metrics.VerificationsTotal.WithLabelValues(string(KindAudienceMismatch)).Inc()
		logger.Info("token rejected", slog.String("outcome", string(KindAudienceMismatch)))
		return nil, &Error{Kind: KindAudienceMismatch}
	}

	v.metrics.VerificationsTotal.WithLabelValues("valid").Inc()
	return claims, nil
}

// classifyParseError maps golang-jwt parse failures onto the tagged kinds.
// Expiry is checked before signature by the library only when the signature
// already validated, so the ordering here stays structure, signature, expiry.
func classifyParseError(err error) Kind {
	switch {
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return KindMalformed
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid), errors.Is(err, jwtv5.ErrTokenUnverifiable):
		return KindSignatureInvalid
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return KindExpired
	default:
		return KindMalformed
	}
}
