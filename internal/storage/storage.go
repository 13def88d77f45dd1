package storage

import "errors"

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrClientExists    = errors.New("client already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("authorization request not found")
	ErrCodeNotFound    = errors.New("authorization code not found")
	ErrCodeConsumed    = errors.New("authorization code already consumed")
	ErrTokenNotFound   = errors.New("refresh token not found")
	ErrTokenRevoked    = errors.New("refresh token already revoked")
	ErrConsentNotFound = errors.New("consent grant not found")
	ErrKeyNotFound     = errors.New("cache key not found")
	InfoCacheDisabled  = errors.New("info cache is disabled")
)
