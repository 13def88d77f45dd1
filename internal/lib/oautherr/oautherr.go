package oautherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the RFC 6749 / RFC 6750 error bucket exposed to clients. Anything
// finer-grained stays server-side so grant failures cannot be probed.
type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeInvalidClient        Code = "invalid_client"
	CodeInvalidGrant         Code = "invalid_grant"
	CodeInvalidScope         Code = "invalid_scope"
	CodeInvalidToken         Code = "invalid_token"
	CodeInsufficientScope    Code = "insufficient_scope"
	CodeAccessDenied         Code = "access_denied"
	CodeUnauthorizedClient   Code = "unauthorized_client"
	CodeUnsupportedGrantType Code = "unsupported_grant_type"
	CodeServerError          Code = "server_error"
)

// Error carries the taxonomy bucket, a client-safe description and the HTTP
// status the transport layer should answer with.
type Error struct {
	Code        Code   `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause returns a copy carrying the underlying error for server-side logs.
// The cause is never serialized to the client.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

// WithDescription returns a copy with a different client-safe description.
func (e *Error) WithDescription(desc string) *Error {
	cp := *e
	cp.Description = desc
	return &cp
}

var (
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Description: "missing or malformed parameters", Status: http.StatusBadRequest}
	ErrInvalidClient  = &Error{Code: CodeInvalidClient, Description: "client authentication failed", Status: http.StatusUnauthorized}
	// ErrInvalidGrant is deliberately generic: code/refresh-token invalid,
	// expired, reused and PKCE mismatch all collapse into this bucket.
	ErrInvalidGrant         = &Error{Code: CodeInvalidGrant, Description: "invalid or expired grant", Status: http.StatusBadRequest}
	ErrInvalidScope         = &Error{Code: CodeInvalidScope, Description: "requested scope is invalid or not allowed", Status: http.StatusBadRequest}
	ErrInvalidToken         = &Error{Code: CodeInvalidToken, Description: "token is invalid or expired", Status: http.StatusUnauthorized}
	ErrInsufficientScope    = &Error{Code: CodeInsufficientScope, Description: "token lacks the required scope", Status: http.StatusForbidden}
	ErrAccessDenied         = &Error{Code: CodeAccessDenied, Description: "resource owner denied the request", Status: http.StatusBadRequest}
	ErrUnauthorizedClient   = &Error{Code: CodeUnauthorizedClient, Description: "client not authorized for this grant type", Status: http.StatusUnauthorized}
	ErrUnsupportedGrantType = &Error{Code: CodeUnsupportedGrantType, Description: "grant type not supported", Status: http.StatusBadRequest}
	ErrServerError          = &Error{Code: CodeServerError, Description: "an unexpected error occurred", Status: http.StatusInternalServerError}
)

// From converts any error into a taxonomy error, collapsing unknown errors
// into server_error so internals never leak.
func From(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ErrServerError.WithCause(err)
}

// Is allows errors.Is matching on the taxonomy bucket.
func (e *Error) Is(target error) bool {
	var oe *Error
	if !errors.As(target, &oe) {
		return false
	}
	return e.Code == oe.Code
}
