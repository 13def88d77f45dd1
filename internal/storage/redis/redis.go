package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"authd/internal/config"
	"authd/internal/domain/models"
	"authd/internal/storage"
)

// Cache using redis provides fast access to the denylist hot path and the
// published JWKS document so verification does not hit postgres or the
// signer on every request.
type Cache struct {
	rdb     *redis.Client
	keysTTL time.Duration
}

// NewCache creates new instance of redis client
func NewCache(conf *config.RedisConfig) (*Cache, error) {
	if !conf.Enabled {
		return nil, storage.InfoCacheDisabled
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Host + ":" + strconv.Itoa(conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})

	return &Cache{rdb: rdb, keysTTL: conf.KeysTTL}, nil
}

const (
	denylistPrefix = "denylist:"
	jwksKey        = "jwks"
)

// RevokeJTI mirrors a denylist entry in cache, expiring with the token
func (c *Cache) RevokeJTI(ctx context.Context, entry models.RevokedJti) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, denylistPrefix+entry.JTI, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache denylist entry: %w", err)
	}
	return nil
}

// IsJTIRevoked checks only the cache; a miss means "unknown", not "valid"
func (c *Cache) IsJTIRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cached denylist: %w", err)
	}
	return n > 0, nil
}

// SaveJWKS caches the serialized key set document
func (c *Cache) SaveJWKS(ctx context.Context, document []byte) error {
	if err := c.rdb.Set(ctx, jwksKey, document, c.keysTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache jwks: %w", err)
	}
	return nil
}

// JWKS gets the cached key set document
func (c *Cache) JWKS(ctx context.Context) ([]byte, error) {
	document, err := c.rdb.Get(ctx, jwksKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get cached jwks: %w", err)
	}
	return document, nil
}

// Close shuts down the underlying client
func (c *Cache) Close() error {
	return c.rdb.Close()
}
