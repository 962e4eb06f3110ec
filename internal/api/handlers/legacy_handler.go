package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/rs/zerolog/log"
)

// LegacyUserService is the store behind the legacy users endpoints.
type LegacyUserService interface {
	Register(username, password string) error
	Authenticate(username, password string) error
}

// LegacyHandler serves the legacy users service. It issues no tokens.
type LegacyHandler struct {
	service LegacyUserService
}

// NewLegacyHandler creates a new LegacyHandler.
func NewLegacyHandler(service LegacyUserService) *LegacyHandler {
	return &LegacyHandler{service: service}
}

// Index renders the landing page.
func (h *LegacyHandler) Index(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "legacy_index", pageData{})
}

// Dashboard renders the static dashboard page.
func (h *LegacyHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "legacy_dashboard", pageData{})
}

// Register handles POST /api/register.
func (h *LegacyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.service.Register(payload.Username, payload.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Username and password required")
	case errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusConflict, "User already exists")
	case err != nil:
		log.Error().Err(err).Str("username", payload.Username).Msg("Failed to register legacy user")
		writeError(w, http.StatusInternalServerError, "Failed to register user")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
	}
}

// Login handles POST /api/login.
func (h *LegacyHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.service.Authenticate(payload.Username, payload.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Str("username", payload.Username).Msg("Failed legacy authentication attempt")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		log.Error().Err(err).Str("username", payload.Username).Msg("Failed to authenticate legacy user")
		writeError(w, http.StatusInternalServerError, "Login failed")
	}
}
