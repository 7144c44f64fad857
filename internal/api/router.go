package api

import (
	"net/http"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handlers *Handlers, tokens middleware.TokenValidator, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", handlers.Health)

	// Public catalog and shipping options
	r.Get("/products/{id}", handlers.GetProduct)
	r.Get("/config/shipping-methods", handlers.GetShippingMethods)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(tokens))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handlers.GetCart)
			r.Post("/", handlers.AddToCart)
			r.Delete("/", handlers.ClearCart)
			r.Put("/{itemId}", handlers.UpdateCartItem)
			r.Delete("/{itemId}", handlers.RemoveFromCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", handlers.SubmitCheckout)
			r.Get("/", handlers.ListCheckouts)
			r.Get("/{id}", handlers.GetCheckout)
		})

		r.Get("/config/coupons", handlers.GetCoupons)
		r.Get("/config/fees", handlers.GetFees)
		r.Get("/config/tax-rates", handlers.GetTaxRates)
	})

	return r
}
