package api

import (
	"net/http"
	"strconv"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	ID         string          `json:"id"`
	Items      []cart.Item     `json:"items"`
	Version    int             `json:"version"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{
		ID:         c.ID,
		Items:      items,
		Version:    c.Version,
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Version   int    `json:"version,omitempty"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
	Version  int  `json:"version,omitempty"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	c, err := h.carts.AddItem(r.Context(), userID, req.ProductID, quantity, req.Variant, req.Version)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.respondError(w, r, &badRequestError{msg: "quantity is required"})
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), userID, chi.URLParam(r, "itemId"), *req.Quantity, req.Version)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	version, err := versionParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), userID, chi.URLParam(r, "itemId"), version)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.Clear(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

// versionParam reads the optional ?version= pin used by bodyless requests.
func versionParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &badRequestError{msg: "version must be a non-negative integer"}
	}
	return v, nil
}
