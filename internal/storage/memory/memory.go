package memory

import (
	"context"
	"sync"
	"time"

	uu "github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// Storage is an in-process implementation of the same storage surface the
// postgres adapter exposes. Short-lived artifacts (requests, codes, denylist
// entries) live in go-cache so they expire with their own TTL; everything
// else sits behind a mutex. Meant for development and tests.
type Storage struct {
	mu       sync.Mutex
	clients  map[string]models.Client
	users    map[string]models.User
	tokens   map[string]models.RefreshToken // keyed by token hash
	consents map[string]models.ConsentGrant // keyed by subject|client

	requests *gocache.Cache
	codes    *gocache.Cache
	denylist *gocache.Cache
}

// New creates an empty in-process storage.
func New() *Storage {
	return &Storage{
		clients:  make(map[string]models.Client),
		users:    make(map[string]models.User),
		tokens:   make(map[string]models.RefreshToken),
		consents: make(map[string]models.ConsentGrant),
		requests: gocache.New(gocache.NoExpiration, time.Minute),
		codes:    gocache.New(gocache.NoExpiration, time.Minute),
		denylist: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Client gets a registered client by id
func (s *Storage) Client(_ context.Context, clientID string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	return &client, nil
}

// SaveClient registers a client
func (s *Storage) SaveClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; ok {
		return storage.ErrClientExists
	}
	s.clients[client.ID] = *client
	return nil
}

// UserByID gets a user by id
func (s *Storage) UserByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return user, nil
}

// SaveUser upserts a user's profile attributes
func (s *Storage) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

// SaveAuthRequest saves an in-flight authorization request until its expiry
func (s *Storage) SaveAuthRequest(_ context.Context, req *models.AuthorizationRequest) error {
	cp := *req
	s.requests.Set(req.ID.String(), &cp, time.Until(req.ExpiresAt))
	return nil
}

// AuthRequest gets an authorization request by id
func (s *Storage) AuthRequest(_ context.Context, id uu.UUID) (*models.AuthorizationRequest, error) {
	v, ok := s.requests.Get(id.String())
	if !ok {
		return nil, storage.ErrRequestNotFound
	}
	req := *(v.(*models.AuthorizationRequest))
	return &req, nil
}

// UpdateAuthRequest advances the state of an in-flight request
func (s *Storage) UpdateAuthRequest(_ context.Context, req *models.AuthorizationRequest) error {
	if _, ok := s.requests.Get(req.ID.String()); !ok {
		return storage.ErrRequestNotFound
	}
	cp := *req
	s.requests.Set(req.ID.String(), &cp, time.Until(req.ExpiresAt))
	return nil
}

// RemoveAuthRequest deletes an authorization request
func (s *Storage) RemoveAuthRequest(_ context.Context, id uu.UUID) error {
	s.requests.Delete(id.String())
	return nil
}

// SaveAuthCode saves an authorization code until its expiry
func (s *Storage) SaveAuthCode(_ context.Context, code *models.AuthorizationCode) error {
	cp := *code
	s.codes.Set(code.CodeHash, &cp, time.Until(code.ExpiresAt))
	return nil
}

// ConsumeAuthCode atomically marks a code used and returns it. The mutex
// plays the role of the database's conditional write: of two concurrent
// redemptions only one observes Used == false.
func (s *Storage) ConsumeAuthCode(_ context.Context, codeHash string) (*models.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.codes.Get(codeHash)
	if !ok {
		return nil, storage.ErrCodeNotFound
	}
	code := v.(*models.AuthorizationCode)
	if code.Used {
		return nil, storage.ErrCodeConsumed
	}
	code.Used = true
	cp := *code
	return &cp, nil
}

// SaveRefreshToken saves refresh token metadata keyed by its hash
func (s *Storage) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.TokenHash] = *token
	return nil
}

// RefreshTokenByHash gets refresh token metadata by hash
func (s *Storage) RefreshTokenByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return &token, nil
}

// MarkRotated revokes a not-yet-revoked token under the lock and returns it
func (s *Storage) MarkRotated(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if token.Revoked {
		return nil, storage.ErrTokenRevoked
	}
	token.Revoked = true
	s.tokens[tokenHash] = token
	return &token, nil
}

// RevokeFamily revokes every token sharing the family id
func (s *Storage) RevokeFamily(_ context.Context, familyID uu.UUID) ([]models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []models.RefreshToken
	for hash, token := range s.tokens {
		if token.FamilyID == familyID {
			token.Revoked = true
			s.tokens[hash] = token
			revoked = append(revoked, token)
		}
	}
	return revoked, nil
}

// RevokeJTI inserts a denylist entry that expires with its token
func (s *Storage) RevokeJTI(_ context.Context, entry models.RevokedJti) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.denylist.Set(entry.JTI, entry, ttl)
	return nil
}

// IsJTIRevoked checks the denylist
func (s *Storage) IsJTIRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	v, ok := s.denylist.Get(jti)
	if !ok {
		return false, nil
	}
	entry := v.(models.RevokedJti)
	return entry.ExpiresAt.After(now), nil
}

// PruneDenylist is a no-op: go-cache evicts expired entries on its own
func (s *Storage) PruneDenylist(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// Consent gets a subject's consent grant for a client
func (s *Storage) Consent(_ context.Context, subject, clientID string) (*models.ConsentGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.consents[subject+"|"+clientID]
	if !ok {
		return nil, storage.ErrConsentNotFound
	}
	return &grant, nil
}

// SaveConsent saves (or widens) a consent grant
func (s *Storage) SaveConsent(_ context.Context, grant *models.ConsentGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[grant.Subject+"|"+grant.ClientID] = *grant
	return nil
}

// RemoveConsent deletes a consent grant
func (s *Storage) RemoveConsent(_ context.Context, subject, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consents, subject+"|"+clientID)
	return nil
}
