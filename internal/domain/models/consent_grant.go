package models

import "time"

// ConsentGrant records that a subject already approved a client for a scope
// set, letting the authorization flow skip the interactive consent step.
// Revoking a grant does not retroactively invalidate already-issued tokens.
type ConsentGrant struct {
	Subject   string    `json:"subject" db:"subject"`
	ClientID  string    `json:"client_id" db:"client_id"`
	Scopes    []string  `json:"scopes" db:"scopes"`
	GrantedAt time.Time `json:"granted_at" db:"granted_at"`
}

// Covers reports whether the grant already approves every requested scope.
func (g *ConsentGrant) Covers(requested []string) bool {
	for _, want := range requested {
		found := false
		for _, have := range g.Scopes {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
