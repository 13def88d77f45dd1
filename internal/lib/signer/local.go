package signer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
)

const rsaKeyBits = 2048

// Local signs RS256 tokens with an in-process RSA key pair. The key is read
// from a PEM file when present, generated and written back otherwise, so a
// restart keeps the same kid and outstanding tokens stay verifiable.
type Local struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PrivateKey
	kid  string
}

// NewLocal loads the RSA key from keyPath, generating one when the file does
// not exist. An empty keyPath generates an ephemeral key (tests, dev).
func NewLocal(keyPath string) (*Local, error) {
	const op = "signer.NewLocal"

	var key *rsa.PrivateKey
	if keyPath != "" {
		raw, err := os.ReadFile(keyPath)
		switch {
		case err == nil:
			key, err = parsePrivateKeyPEM(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		case errors.Is(err, os.ErrNotExist):
			key, err = generateAndPersist(keyPath)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		var err error
		key, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	kid := keyID(key)
	return &Local{
		keys: map[string]*rsa.PrivateKey{kid: key},
		kid:  kid,
	}, nil
}

// Sign produces a compact RS256 JWS with the active kid in the header.
func (s *Local) Sign(_ context.Context, claims jwtv5.Claims) (string, error) {
	s.mu.RLock()
	kid := s.kid
	key := s.keys[kid]
	s.mu.RUnlock()

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key)
}

// KeyID returns the active key id.
func (s *Local) KeyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kid
}

// Keyfunc resolves the public key by the token's kid header. Tokens signed by
// a rotated-out-but-still-held key keep verifying until the key is dropped.
func (s *Local) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)

		s.mu.RLock()
		defer s.mu.RUnlock()
		if kid == "" {
			return &s.keys[s.kid].PublicKey, nil
		}
		key, ok := s.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid: %s", kid)
		}
		return &key.PublicKey, nil
	}
}

// JWKS returns the public half of every held key (active and retiring).
func (s *Local) JWKS(_ context.Context) (jwk.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := jwk.NewSet()
	for kid, key := range s.keys {
		jwkKey, err := jwk.New(&key.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWK: %w", err)
		}
		_ = jwkKey.Set(jwk.KeyIDKey, kid)
		_ = jwkKey.Set(jwk.AlgorithmKey, jwa.RS256)
		_ = jwkKey.Set(jwk.KeyUsageKey, "sig")
		set.Add(jwkKey)
	}
	return set, nil
}

// Rotate generates a fresh key pair and makes it active. The previous key is
// kept for verification so tokens signed before the rotation stay valid.
func (s *Local) Rotate() error {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("key rotation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kid := keyID(key)
	s.keys[kid] = key
	s.kid = kid
	return nil
}

func parsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("invalid private key format")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func generateAndPersist(path string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, err
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// keyID derives a stable kid from the public modulus.
func keyID(key *rsa.PrivateKey) string {
	sum := key.PublicKey.N.Bytes()
	if len(sum) > 8 {
		sum = sum[:8]
	}
	return fmt.Sprintf("%x", sum)
}
