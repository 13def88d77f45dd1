package interfaces

import (
	"context"
	"time"
)

// DenylistChecker answers whether a token id has been revoked.
type DenylistChecker interface {
	IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
}
