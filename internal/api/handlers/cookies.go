package handlers

import (
	"net/http"
	"time"
)

const (
	TokenCookie   = "token"
	SessionCookie = "session"
)

// CookieHelper manages the authentication cookies of the login service.
type CookieHelper struct {
	secure bool
}

// NewCookieHelper creates a cookie helper. secure should be set in production.
func NewCookieHelper(secure bool) *CookieHelper {
	return &CookieHelper{secure: secure}
}

// SetAuthCookies sets the token and session cookies for ttl.
func (h *CookieHelper) SetAuthCookies(w http.ResponseWriter, token, sessionID string, ttl time.Duration) {
	h.setCookie(w, TokenCookie, token, int(ttl.Seconds()))
	h.setCookie(w, SessionCookie, sessionID, int(ttl.Seconds()))
}

// ClearAuthCookies expires both cookies.
func (h *CookieHelper) ClearAuthCookies(w http.ResponseWriter) {
	h.setCookie(w, TokenCookie, "", -1)
	h.setCookie(w, SessionCookie, "", -1)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *CookieHelper) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
