package models

import "time"

// Client is a registered application allowed to request tokens.
// SecretHash is set only for confidential clients and is never reversible.
type Client struct {
	ID            string         `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	SecretHash    []byte         `json:"-" db:"secret_hash"`
	RedirectURIs  []string       `json:"redirect_uris" db:"redirect_uris"`
	GrantTypes    []string       `json:"grant_types" db:"grant_types"`
	Scopes        []string       `json:"scopes" db:"scopes"`
	RequirePKCE   bool           `json:"require_pkce" db:"require_pkce"`
	AccessTTL     *time.Duration `json:"access_ttl,omitempty" db:"access_ttl"`
	RefreshTTL    *time.Duration `json:"refresh_ttl,omitempty" db:"refresh_ttl"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Confidential reports whether the client authenticates with a secret.
func (c *Client) Confidential() bool {
	return len(c.SecretHash) > 0
}

// AllowsRedirectURI checks the supplied uri against the registered set.
// Matching is exact, no prefix or wildcard logic.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsGrantType reports whether the grant type was registered for the client.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsScope reports whether every token in scope was registered for the client.
func (c *Client) AllowsScope(scopes []string) bool {
	for _, s := range scopes {
		allowed := false
		for _, registered := range c.Scopes {
			if registered == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}
