package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/guard"
	"github.com/isdelr/microservicios/internal/models"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/isdelr/microservicios/internal/session"
	"github.com/rs/zerolog/log"
)

const minPasswordLength = 8

// AuthHandler serves the login service: the browser login flow,
// registration and the token validation endpoint used by other services.
type AuthHandler struct {
	users    services.UserServiceProvider
	issuer   *auth.Issuer
	verifier *auth.Verifier
	sessions session.Store
	events   events.Publisher
	cookies  *CookieHelper
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users services.UserServiceProvider, issuer *auth.Issuer, verifier *auth.Verifier, sessions session.Store, publisher events.Publisher, cookies *CookieHelper) *AuthHandler {
	return &AuthHandler{
		users:    users,
		issuer:   issuer,
		verifier: verifier,
		sessions: sessions,
		events:   publisher,
		cookies:  cookies,
	}
}

// LoginPayload is the JSON form of a login request.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellidos"`
	Phone     string `json:"celular"`
	Address   string `json:"direccion"`
}

// Index redirects to the login page.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// LoginPage renders the login form, or sends an already authenticated user
// to the dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentSubject(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	renderPage(w, http.StatusOK, "login", pageData{})
}

// Login authenticates a user from a form (or JSON) submission, issues a
// token and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username, password, err := readCredentials(r)
	if err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.AuthenticateUser(username, password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		h.loginFailed(w, r, http.StatusBadRequest, "Username and password required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Str("username", username).Msg("Failed authentication attempt")
		h.loginFailed(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		log.Error().Err(err).Str("username", username).Msg("Failed to authenticate user")
		h.loginFailed(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := h.issuer.Issue(user.Username, 0)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		h.loginFailed(w, r, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	ttl := token.ExpiresAt.Sub(token.IssuedAt)
	sess := session.New(user.Username, token.Value, ttl)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to save session")
		h.loginFailed(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	h.cookies.SetAuthCookies(w, token.Value, sess.ID, ttl)
	log.Info().Str("username", user.Username).Msg("User logged in")

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":      token.Value,
			"token_type": "Bearer",
			"expires_in": int(ttl.Seconds()),
			"user":       user,
		})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func readCredentials(r *http.Request) (string, string, error) {
	if isJSON(r) {
		var payload LoginPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(payload.Username), payload.Password, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(r.PostFormValue("username")), r.PostFormValue("password"), nil
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) || isJSON(r) {
		writeError(w, status, msg)
		return
	}
	renderPage(w, status, "login", pageData{Error: msg})
}

// Dashboard shows the protected page for an authenticated browser.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.currentSubject(r)
	if !ok {
		h.clearSession(w, r)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"user": subject})
		return
	}
	renderPage(w, http.StatusOK, "dashboard", pageData{User: subject})
}

// currentSubject resolves the browser's token, preferring the server-side
// session over the token cookie, and verifies it.
func (h *AuthHandler) currentSubject(r *http.Request) (string, bool) {
	token := ""
	if id := cookieValue(r, SessionCookie); id != "" {
		sess, err := h.sessions.Get(r.Context(), id)
		if err == nil {
			token = sess.Token
		} else if !errors.Is(err, session.ErrNotFound) {
			log.Error().Err(err).Msg("Failed to load session")
		}
	}
	if token == "" {
		token = cookieValue(r, TokenCookie)
	}
	if token == "" {
		return "", false
	}

	verified, err := h.verifier.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("Browser token rejected")
		return "", false
	}
	return verified.Subject, true
}

// clearSession drops a stale session, if any, and expires the cookies.
func (h *AuthHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	id := cookieValue(r, SessionCookie)
	if id == "" && cookieValue(r, TokenCookie) == "" {
		return
	}
	if id != "" {
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			log.Error().Err(err).Msg("Failed to delete session")
		}
	}
	h.cookies.ClearAuthCookies(w)
}

// RegisterPage renders the registration form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "register", pageData{})
}

// Register handles new user registration. Only JSON bodies are accepted.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.TrimSpace(payload.Email)

	if payload.Username == "" || payload.Password == "" || payload.Email == "" {
		writeError(w, http.StatusBadRequest, "Username, password and email are required")
		return
	}
	if len(payload.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	user, err := h.users.CreateUser(models.NewUser{
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Address:   payload.Address,
	})
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			writeError(w, http.StatusConflict, "Username or email already registered")
			return
		}
		log.Error().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	log.Info().Str("username", user.Username).Msg("User registered")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "User registered successfully",
		"redirect": "/login",
		"user": map[string]string{
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// Logout ends the session unconditionally and returns to the login page.
// The token itself stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	username := ""
	id := cookieValue(r, SessionCookie)
	if id != "" {
		if sess, err := h.sessions.Get(r.Context(), id); err == nil {
			username = sess.Username
		}
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			log.Error().Err(err).Msg("Failed to delete session")
		}
	}
	h.cookies.ClearAuthCookies(w)

	if username != "" {
		event := events.LogoutEvent{Username: username, SessionID: id, At: time.Now().UTC()}
		if err := h.events.PublishLogout(r.Context(), event); err != nil {
			log.Error().Err(err).Str("username", username).Msg("Failed to publish logout event")
		}
		log.Info().Str("username", username).Msg("User logged out")
	}

	http.Redirect(w, r, "/login", http.StatusFound)
}

// ValidateToken answers whether the bearer token of the request is valid.
// Other services call it through the authentication guard.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	raw, err := guard.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, auth.ValidationResponse{Valid: false, Error: "Token missing"})
		return
	}

	token, err := h.verifier.Verify(raw)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, auth.ErrExpired) {
			msg = "Token expired"
		}
		writeJSON(w, http.StatusUnauthorized, auth.ValidationResponse{Valid: false, Error: msg})
		return
	}

	expiresAt := token.ExpiresAt
	writeJSON(w, http.StatusOK, auth.ValidationResponse{
		Valid:     true,
		User:      token.Subject,
		Token:     token.Value,
		ExpiresAt: &expiresAt,
	})
}
