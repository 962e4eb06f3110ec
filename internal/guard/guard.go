package guard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/isdelr/microservicios/internal/auth"
	"github.com/rs/zerolog/log"
)

// Guard protects handlers by requiring a bearer token that the configured
// Validator accepts.
type Guard struct {
	validator Validator
}

// New creates a Guard.
func New(validator Validator) *Guard {
	return &Guard{validator: validator}
}

// Authorize validates the bearer token of r. On success it returns r with
// the verified subject stored in its context.
func (g *Guard) Authorize(r *http.Request) (*http.Request, error) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	res, err := g.validator.Validate(r.Context(), token)
	if err != nil {
		return nil, err
	}

	return r.WithContext(auth.WithSubject(r.Context(), res.Subject)), nil
}

// Middleware rejects unauthorized requests with 401 before they reach next.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorized, err := g.Authorize(r)
		if err != nil {
			logRejection(r, err)
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, authorized)
	})
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>".
func BearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", auth.ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

func logRejection(r *http.Request, err error) {
	event := log.Warn()
	if errors.Is(err, auth.ErrValidationUnavailable) {
		event = log.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Rejected unauthorized request")
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "Invalid token"
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		msg = "Missing or malformed Authorization header"
	case errors.Is(err, auth.ErrValidationUnavailable):
		msg = "Token validation unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
