package api

import (
	"errors"
	"net/http"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
)

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func statusFor(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad),
		checkout.IsValidation(err),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, product.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, checkout.ErrCheckoutNotFound),
		errors.Is(err, rates.ErrShippingMethodNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, rates.ErrCouponNotFound),
		errors.Is(err, rates.ErrCouponInactive),
		errors.Is(err, rates.ErrCouponExpired),
		errors.Is(err, rates.ErrCouponMinSubtotal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
