package auth

import "time"

// ValidationPath is the login service endpoint other services call to
// validate a bearer token.
const ValidationPath = "/api/validate-token"

// ValidationResponse is the body returned by the validation endpoint.
type ValidationResponse struct {
	Valid     bool       `json:"valid"`
	User      string     `json:"user,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}
