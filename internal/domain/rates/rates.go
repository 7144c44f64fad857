// Package rates holds the checkout configuration tables: shipping methods,
// coupons, payment fees and tax brackets.
package rates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrShippingMethodNotFound = errors.New("shipping method not found")
	ErrCouponNotFound         = errors.New("coupon not found")
	ErrCouponInactive         = errors.New("coupon is not active")
	ErrCouponExpired          = errors.New("coupon has expired")
	ErrCouponMinSubtotal      = errors.New("subtotal below coupon minimum")
	ErrInvalidCoupon          = errors.New("coupon is misconfigured")
)

type ShippingMethod struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays int             `json:"estimated_days"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Constraints struct {
	MinSubtotal *decimal.Decimal `json:"min_subtotal,omitempty"`
	MaxDiscount *decimal.Decimal `json:"max_discount,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	Active      bool             `json:"active"`
}

type Coupon struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Constraints   Constraints     `json:"constraints"`
}

// NormalizeCode is the canonical form coupon codes are stored and matched in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount returns the amount the coupon takes off subtotal at time now,
// capped at max_discount and at the subtotal itself.
func (c Coupon) Discount(subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Constraints.Active {
		return decimal.Zero, ErrCouponInactive
	}
	if c.Constraints.ExpiresAt != nil && now.After(*c.Constraints.ExpiresAt) {
		return decimal.Zero, ErrCouponExpired
	}
	if c.Constraints.MinSubtotal != nil && subtotal.LessThan(*c.Constraints.MinSubtotal) {
		return decimal.Zero, fmt.Errorf("%w: need %s", ErrCouponMinSubtotal, c.Constraints.MinSubtotal)
	}
	if c.DiscountValue.IsNegative() {
		return decimal.Zero, ErrInvalidCoupon
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, c.DiscountType)
	}

	if c.Constraints.MaxDiscount != nil && amount.GreaterThan(*c.Constraints.MaxDiscount) {
		amount = *c.Constraints.MaxDiscount
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount.Round(pricing.CurrencyPlaces), nil
}

// FeesAndRates is the payment fee schedule.
type FeesAndRates struct {
	PaymentFee     decimal.Decimal `json:"payment_fee"`
	PaymentFeeRate decimal.Decimal `json:"payment_fee_rate"`
	Currency       string          `json:"currency"`
}

func (f FeesAndRates) Fees() pricing.Fees {
	return pricing.Fees{Flat: f.PaymentFee, Rate: f.PaymentFeeRate}
}

// DefaultCurrency applies when no fee schedule names one.
const DefaultCurrency = "USD"
