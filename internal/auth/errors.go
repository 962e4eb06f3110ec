package auth

import "errors"

var (
	// ErrMissingCredentials is returned when a login form lacks a username or password.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrInvalidCredentials is returned when no user matches the submitted
	// username and password. It never says which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidSignature is returned for tokens that do not verify against
	// the signing key, including malformed input.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned for correctly signed tokens past their expiry.
	ErrExpired = errors.New("token has expired")

	// ErrInvalidToken is returned when the remote validator rejects a token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrValidationUnavailable is returned when the remote validator cannot
	// be reached or does not answer in time.
	ErrValidationUnavailable = errors.New("token validation unavailable")
)
