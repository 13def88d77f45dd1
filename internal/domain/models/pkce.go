package models

// PKCE data model for validating CodeChallenge as a result of CodeVerifier
// hash made by the specified Method. Only S256 is accepted.
type PKCE struct {
	CodeChallenge string `json:"code_challenge" db:"code_challenge"`
	Method        string `json:"code_challenge_method" db:"code_challenge_method"`
}
