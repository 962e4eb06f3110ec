package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/microservicios/internal/api/handlers"
	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/guard"
	"github.com/isdelr/microservicios/internal/models"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/isdelr/microservicios/internal/session"
	"github.com/isdelr/microservicios/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-test-secret"

type stack struct {
	login   *httptest.Server
	catalog *httptest.Server
	billing *httptest.Server
}

func newStack(t *testing.T) stack {
	t.Helper()
	dir := t.TempDir()
	origins := []string{"*"}
	bus := events.NewInProcessBus(watermill.NopLogger{})
	t.Cleanup(func() { bus.Close() })

	usersDB, err := database.New(filepath.Join(dir, "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { usersDB.Close() })
	require.NoError(t, database.MigrateUsers(usersDB))
	userService := services.NewUserService(usersDB)
	_, err = userService.CreateUser(models.NewUser{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(secret, time.Hour)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(secret)
	require.NoError(t, err)

	login := httptest.NewServer(NewLoginRouter(origins, LoginRoutes{
		Auth:   handlers.NewAuthHandler(userService, issuer, verifier, session.NewMemoryStore(), bus, handlers.NewCookieHelper(false)),
		Health: handlers.NewHealthHandler("login"),
	}))
	t.Cleanup(login.Close)

	g := guard.New(guard.NewRemoteValidator(login.URL, time.Second))

	catalogDB, err := database.New(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalogDB.Close() })
	require.NoError(t, database.MigrateCatalog(catalogDB))
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	catalog := httptest.NewServer(NewCatalogRouter(origins, CatalogRoutes{
		Products:  handlers.NewProductHandler(services.NewProductService(catalogDB), bus),
		WebSocket: handlers.NewWebSocketHandler(hub, origins),
		Health:    handlers.NewHealthHandler("catalog"),
		Guard:     g.Middleware,
	}))
	t.Cleanup(catalog.Close)

	billingDB, err := database.New(filepath.Join(dir, "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { billingDB.Close() })
	require.NoError(t, database.MigrateBilling(billingDB))

	billing := httptest.NewServer(NewBillingRouter(origins, BillingRoutes{
		Invoices: handlers.NewInvoiceHandler(services.NewInvoiceService(billingDB)),
		Health:   handlers.NewHealthHandler("billing"),
		Guard:    g.Middleware,
	}))
	t.Cleanup(billing.Close)

	return stack{login: login, catalog: catalog, billing: billing}
}

func loginToken(t *testing.T, loginURL string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, loginURL+"/login", strings.NewReader(url.Values{"username": {"alice"}, "password": {"correct-horse"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func call(t *testing.T, method, target, token, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, target, nil)
	}
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEndToEnd_TokenFlow(t *testing.T) {
	s := newStack(t)
	token := loginToken(t, s.login.URL)

	t.Run("guarded route without token", func(t *testing.T) {
		resp := call(t, http.MethodGet, s.catalog.URL+"/products", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("guarded route with forged token", func(t *testing.T) {
		resp := call(t, http.MethodGet, s.catalog.URL+"/products", token+"x", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("catalog accepts a token from the login service", func(t *testing.T) {
		resp := call(t, http.MethodPost, s.catalog.URL+"/products", token, `{"name":"Lapiz","price":"1.50","quantity":10}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = call(t, http.MethodPost, s.catalog.URL+"/products/sell/1", token, `{"quantity":2}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = call(t, http.MethodGet, s.catalog.URL+"/sales", token, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("single product is public", func(t *testing.T) {
		resp := call(t, http.MethodGet, s.catalog.URL+"/products/1", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("billing is guarded and slash-tolerant", func(t *testing.T) {
		resp := call(t, http.MethodGet, s.billing.URL+"/api/facturas/", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = call(t, http.MethodGet, s.billing.URL+"/api/facturas", token, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = call(t, http.MethodGet, s.billing.URL+"/api/facturas/99/", token, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("expired token is rejected by the catalog", func(t *testing.T) {
		issuedAt := time.Now().Add(-2 * time.Hour)
		claims := &auth.Claims{
			User: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				IssuedAt:  jwt.NewNumericDate(issuedAt),
				ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
			},
		}
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)

		resp := call(t, http.MethodGet, s.catalog.URL+"/products", expired, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token still validates after logout", func(t *testing.T) {
		// Tokens are stateless: logout ends the session, not the token.
		req, err := http.NewRequest(http.MethodPost, s.login.URL+"/login", strings.NewReader(url.Values{"username": {"alice"}, "password": {"correct-horse"}}.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		cookies := resp.Cookies()
		require.NotEmpty(t, cookies)

		noRedirect := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		req, err = http.NewRequest(http.MethodGet, s.login.URL+"/logout", nil)
		require.NoError(t, err)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err = noRedirect.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		resp = call(t, http.MethodGet, s.catalog.URL+"/products", body.Token, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health is public", func(t *testing.T) {
		for _, base := range []string{s.login.URL, s.catalog.URL, s.billing.URL} {
			resp := call(t, http.MethodGet, base+"/health", "", "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}
	})
}

func TestEndToEnd_LoginServiceDown(t *testing.T) {
	s := newStack(t)
	token := loginToken(t, s.login.URL)
	s.login.Close()

	resp := call(t, http.MethodGet, s.catalog.URL+"/products", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRouter_BrowserFlow(t *testing.T) {
	s := newStack(t)
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(s.login.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = client.PostForm(s.login.URL+"/login", url.Values{"username": {"Alice"}, "password": {"correct-horse"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cookies := resp.Cookies()
	require.Len(t, cookies, 2)

	req, err := http.NewRequest(http.MethodGet, s.login.URL+"/dashboard", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
