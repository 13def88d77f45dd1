package models

// User's model as seen by the engine. Authentication itself is an external
// collaborator; the engine only projects profile attributes into claims.
type User struct {
	ID            string `json:"id" db:"id"`
	Email         string `json:"email" db:"email"`
	EmailVerified bool   `json:"email_verified" db:"email_verified"`
	GivenName     string `json:"given_name" db:"given_name"`
	FamilyName    string `json:"family_name" db:"family_name"`
}
