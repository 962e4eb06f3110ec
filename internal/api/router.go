package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/microservicios/internal/api/handlers"
)

// newBaseRouter creates a Chi router with the middleware stack shared by
// every service.
func newBaseRouter(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Credentials cannot be combined with a wildcard origin.
	allowCredentials := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCredentials = false
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	return r
}

// LoginRoutes holds the handlers of the login service.
type LoginRoutes struct {
	Auth   *handlers.AuthHandler
	Health *handlers.HealthHandler
}

// NewLoginRouter creates the router of the login service.
func NewLoginRouter(allowedOrigins []string, h LoginRoutes) *chi.Mux {
	r := newBaseRouter(allowedOrigins)

	r.Get("/health", h.Health.Check)

	r.Get("/", h.Auth.Index)
	r.Get("/login", h.Auth.LoginPage)
	r.Post("/login", h.Auth.Login)
	r.Get("/dashboard", h.Auth.Dashboard)
	r.Get("/register", h.Auth.RegisterPage)
	r.Post("/register", h.Auth.Register)
	r.Get("/logout", h.Auth.Logout)
	r.Post("/logout", h.Auth.Logout)

	r.Get("/api/validate-token", h.Auth.ValidateToken)

	return r
}

// CatalogRoutes holds the handlers of the catalog service.
type CatalogRoutes struct {
	Products  *handlers.ProductHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
	// Guard rejects requests without a valid bearer token.
	Guard func(http.Handler) http.Handler
}

// NewCatalogRouter creates the router of the catalog service. Reading a
// single product is public; everything else requires a valid token.
func NewCatalogRouter(allowedOrigins []string, h CatalogRoutes) *chi.Mux {
	r := newBaseRouter(allowedOrigins)

	r.Get("/health", h.Health.Check)
	r.Get("/ws/sales", h.WebSocket.Serve)
	r.Get("/products/{id}", h.Products.Get)

	guarded := r.With(h.Guard)
	guarded.Get("/products", h.Products.GetAll)
	guarded.Post("/products", h.Products.Create)
	guarded.Put("/products/{id}", h.Products.Update)
	guarded.Delete("/products/{id}", h.Products.Delete)
	guarded.Post("/products/sell/{id}", h.Products.Sell)
	guarded.Get("/sales", h.Products.GetSales)

	return r
}

// BillingRoutes holds the handlers of the billing service.
type BillingRoutes struct {
	Invoices *handlers.InvoiceHandler
	Health   *handlers.HealthHandler
	Guard    func(http.Handler) http.Handler
}

// NewBillingRouter creates the router of the billing service. Trailing
// slashes are optional on every route.
func NewBillingRouter(allowedOrigins []string, h BillingRoutes) *chi.Mux {
	r := newBaseRouter(allowedOrigins)
	r.Use(middleware.StripSlashes)

	r.Get("/health", h.Health.Check)

	r.Route("/api/facturas", func(r chi.Router) {
		r.Use(h.Guard)

		r.Get("/", h.Invoices.List)
		r.Post("/", h.Invoices.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Invoices.Retrieve)
			r.Put("/", h.Invoices.Replace)
			r.Patch("/", h.Invoices.PartialUpdate)
			r.Delete("/", h.Invoices.Destroy)
		})
	})

	return r
}

// LegacyRoutes holds the handlers of the legacy users service.
type LegacyRoutes struct {
	Legacy *handlers.LegacyHandler
	Health *handlers.HealthHandler
}

// NewLegacyRouter creates the router of the legacy users service.
func NewLegacyRouter(allowedOrigins []string, h LegacyRoutes) *chi.Mux {
	r := newBaseRouter(allowedOrigins)

	r.Get("/health", h.Health.Check)
	r.Get("/", h.Legacy.Index)
	r.Get("/dashboard", h.Legacy.Dashboard)
	r.Post("/api/register", h.Legacy.Register)
	r.Post("/api/login", h.Legacy.Login)

	return r
}
