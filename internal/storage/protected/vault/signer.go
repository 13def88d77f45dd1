package vault

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"sync"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"

	"authd/internal/storage/protected"
)

// Signer signs RS256 tokens through the Vault transit engine. The transit key
// version doubles as the JWT kid, so rotating the key in Vault rotates the
// published JWKS without redeploying the service.
type Signer struct {
	v       *protected.Vault
	keyName string

	mu      sync.RWMutex
	pubKeys map[string]*rsa.PublicKey
}

// NewSigner creates a transit-backed signer for the named key.
func NewSigner(client *protected.Vault, keyName string) *Signer {
	return &Signer{
		v:       client,
		keyName: keyName,
		pubKeys: make(map[string]*rsa.PublicKey),
	}
}

// LatestKeyVersion gets the latest key version with proper error handling
func (s *Signer) LatestKeyVersion(ctx context.Context) (int, error) {
	secret, err := s.v.Client.Read(ctx, fmt.Sprintf("transit/keys/%s", s.keyName))
	if err != nil {
		return 0, fmt.Errorf("failed to read key: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return 0, fmt.Errorf("empty response from vault")
	}

	versionRaw, ok := secret.Data["latest_version"]
	if !ok {
		return 0, fmt.Errorf("latest_version field missing")
	}

	versionNum, ok := versionRaw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("invalid version format")
	}

	version, err := versionNum.Int64()
	if err != nil {
		return 0, fmt.Errorf("version conversion failed: %w", err)
	}

	return int(version), nil
}

// Sign produces a compact RS256 JWS over the claim set using the latest
// transit key version.
func (s *Signer) Sign(ctx context.Context, claims jwtv5.Claims) (string, error) {
	keyVersion, err := s.LatestKeyVersion(ctx)
	if err != nil {
		return "", err
	}

	header := map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
		"kid": fmt.Sprintf("%d", keyVersion),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("header marshaling failed: %w", err)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("claims marshaling failed: %w", err)
	}

	headerBase64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	claimsBase64 := base64.RawURLEncoding.EncodeToString(claimsJSON)
	signingInput := headerBase64 + "." + claimsBase64

	signingData := map[string]interface{}{
		"input":               base64.StdEncoding.EncodeToString([]byte(signingInput)),
		"key_version":         keyVersion,
		"signature_algorithm": "pkcs1v15",
		"hash_algorithm":      "sha2-256",
	}
	secret, err := s.v.Client.Write(ctx, fmt.Sprintf("transit/sign/%s", s.keyName), signingData)
	if err != nil {
		return "", fmt.Errorf("vault signing failed: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("empty response from vault")
	}

	signatureRaw, ok := secret.Data["signature"]
	if !ok {
		return "", fmt.Errorf("signature missing in response")
	}

	signature, ok := signatureRaw.(string)
	if !ok {
		return "", fmt.Errorf("invalid signature format")
	}

	// Signature comes back as vault:v<N>:<base64>
	parts := strings.SplitN(signature, ":", 3)
	sigBytes, err := base64.StdEncoding.DecodeString(parts[len(parts)-1])
	if err != nil {
		return "", fmt.Errorf("signature decoding failed: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sigBytes), nil
}

// KeyID returns the latest transit key version as the active kid.
func (s *Signer) KeyID() string {
	version, err := s.LatestKeyVersion(context.Background())
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d", version)
}

// Keyfunc resolves the public key by the token's kid header, refreshing the
// cached key set from Vault on a miss.
func (s *Signer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("kid missing")
		}

		s.mu.RLock()
		key, ok := s.pubKeys[kid]
		s.mu.RUnlock()
		if ok {
			return key, nil
		}

		if err := s.refreshPublicKeys(context.Background()); err != nil {
			return nil, err
		}

		s.mu.RLock()
		defer s.mu.RUnlock()
		key, ok = s.pubKeys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid: %s", kid)
		}
		return key, nil
	}
}

// RotateKey rotates the key pair with error handling
func (s *Signer) RotateKey(ctx context.Context) error {
	_, err := s.v.Client.Write(ctx, fmt.Sprintf("transit/keys/%s/rotate", s.keyName), nil)
	if err != nil {
		return fmt.Errorf("key rotation failed: %w", err)
	}
	return nil
}

// JWKS retrieves every published key version as a JWK set.
func (s *Signer) JWKS(ctx context.Context) (jwk.Set, error) {
	if err := s.refreshPublicKeys(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	set := jwk.NewSet()
	for ver, pub := range s.pubKeys {
		jwkKey, err := jwk.New(pub)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWK: %w", err)
		}
		_ = jwkKey.Set(jwk.KeyIDKey, ver)
		_ = jwkKey.Set(jwk.AlgorithmKey, jwa.RS256)
		_ = jwkKey.Set(jwk.KeyUsageKey, "sig")
		set.Add(jwkKey)
	}
	return set, nil
}

func (s *Signer) refreshPublicKeys(ctx context.Context) error {
	secret, err := s.v.Client.Read(ctx, fmt.Sprintf("transit/keys/%s", s.keyName))
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return fmt.Errorf("empty response from vault")
	}

	versions, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("keys missing in response")
	}

	parsed := make(map[string]*rsa.PublicKey, len(versions))
	for ver, keyData := range versions {
		data, ok := keyData.(map[string]interface{})
		if !ok {
			continue
		}
		pemKey, ok := data["public_key"].(string)
		if !ok {
			continue
		}
		pub, err := parsePublicKeyPEM(pemKey)
		if err != nil {
			return fmt.Errorf("failed to parse public key %s: %w", ver, err)
		}
		parsed[ver] = pub
	}

	s.mu.Lock()
	s.pubKeys = parsed
	s.mu.Unlock()
	return nil
}

func parsePublicKeyPEM(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("invalid public key format")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}
