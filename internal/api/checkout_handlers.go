package api

import (
	"net/http"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var payload checkout.Payload
	if err := decodeJSON(w, r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}

	confirmation, err := h.checkouts.Submit(r.Context(), userID, payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, confirmation)
}

func (h *Handlers) ListCheckouts(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	list, err := h.checkouts.List(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.checkouts.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
