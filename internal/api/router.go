// Package api is the storefront's JSON HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/schema"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"voalzira/internal/config"
	"voalzira/internal/storefront"
)

const (
	cookieName = "voalzira"
	keySession = "sid"
	keyAdmin   = "admin"

	maxBodyBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

// Handler holds the API's dependencies.
type Handler struct {
	sf       *storefront.Storefront
	sessions *storefront.SessionManager
	cookies  sessions.Store
	admin    config.AdminConfig
	logger   *zap.Logger
	forms    *schema.Decoder
}

// NewHandler wires the API over a loaded storefront.
func NewHandler(sf *storefront.Storefront, sm *storefront.SessionManager, cookies sessions.Store, admin config.AdminConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	forms := schema.NewDecoder()
	forms.IgnoreUnknownKeys(true)
	return &Handler{sf: sf, sessions: sm, cookies: cookies, admin: admin, logger: logger, forms: forms}
}

// Routes mounts the API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)

		r.Get("/session", h.GetSession)
		r.Put("/session/store", h.SelectStore)
		r.Put("/session/view", h.Navigate)

		r.Post("/cart/items", h.AddCartItem)
		r.Delete("/cart/items", h.RemoveCartItem)
		r.Post("/cart/coupon", h.ApplyCoupon)
		r.Delete("/cart", h.ClearCart)

		r.Get("/wallet/tiers", h.ListTiers)
		r.Post("/wallet/topup", h.TopUp)
		r.Post("/loyalty/redeem", h.RedeemReward)
		r.Post("/checkout", h.Checkout)

		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Get("/orders", h.ListOrders)

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Post("/products/{id}/stock", h.ToggleStock)

			r.Get("/coupons", h.ListCoupons)
			r.Post("/coupons", h.CreateCoupon)
			r.Put("/coupons/{id}", h.UpdateCoupon)
			r.Delete("/coupons/{id}", h.DeleteCoupon)

			r.Put("/tiers", h.SetTier)
			r.Get("/config", h.GetConfig)
			r.Put("/config", h.UpdateConfig)
			r.Put("/profile", h.UpdateProfile)
			r.Post("/images", h.UploadImage)
			r.Post("/reload", h.Reload)
		})
	})
}

// NewRouter returns the API with request ids, panic recovery, request
// logging and security headers applied. Extra middleware, such as CSRF
// protection, runs after those and before the routes.
func NewRouter(h *Handler, extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLog(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(extra...)
	h.Routes(r)
	return r
}

// Health reports liveness and whether the catalog is loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": h.sf.Ready()})
}
