package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Checkout configuration. Shipping methods are public; the rest needs a
// signed-in shopper.

func (h *Handlers) GetShippingMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.rates.ShippingMethods(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

func (h *Handlers) GetCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.rates.Coupons(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

func (h *Handlers) GetFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.rates.Fees(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fees)
}

func (h *Handlers) GetTaxRates(w http.ResponseWriter, r *http.Request) {
	table, err := h.rates.TaxTable(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, table.Rules())
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
