package checkout

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Checkout"

var (
	ErrCheckoutNotFound      = errors.New("checkout not found")
	ErrEmptyCheckout         = errors.New("checkout must have at least one item")
	ErrMissingShippingMethod = errors.New("shipping_method is required")
	ErrMissingPaymentMethod  = errors.New("payment_method is required")
	ErrInvalidLine           = errors.New("checkout line is invalid")
	ErrPaymentFailed         = errors.New("payment authorization failed")
)

type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ResolvedLocation is the "City, Region, COUNTRY" label stored on the record.
func (a Address) ResolvedLocation() string {
	var parts []string
	for _, p := range []string{a.City, a.Region, strings.ToUpper(a.Country)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LineRequest is what a client submits per line. Prices are never taken
// from the client.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

type Payload struct {
	Items           []LineRequest `json:"items"`
	ShippingAddress Address       `json:"shipping_address"`
	ShippingMethod  string        `json:"shipping_method"`
	PaymentMethod   string        `json:"payment_method"`
	CouponCode      string        `json:"coupon_code,omitempty"`
}

// Validate checks the required fields and merges duplicate lines.
func (p *Payload) Validate() error {
	if len(p.Items) == 0 {
		return ErrEmptyCheckout
	}
	if strings.TrimSpace(p.ShippingMethod) == "" {
		return ErrMissingShippingMethod
	}
	if strings.TrimSpace(p.PaymentMethod) == "" {
		return ErrMissingPaymentMethod
	}

	type key struct{ product, variant string }
	index := make(map[key]int, len(p.Items))
	merged := make([]LineRequest, 0, len(p.Items))
	for _, line := range p.Items {
		if line.ProductID == "" || line.Quantity <= 0 {
			return ErrInvalidLine
		}
		k := key{line.ProductID, line.Variant}
		if i, ok := index[k]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, line)
	}
	p.Items = merged
	return nil
}

// Line is a priced snapshot of one purchased product.
type Line struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant,omitempty"`
}

// Checkout is the immutable record of a completed checkout.
// Total == Subtotal - Discount + Shipping + Tax + PaymentFee.
type Checkout struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Items            []Line          `json:"items"`
	ShippingAddress  Address         `json:"shipping_address"`
	ShippingMethod   string          `json:"shipping_method"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentID        string          `json:"payment_id"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	Currency         string          `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	Shipping         decimal.Decimal `json:"shipping"`
	Tax              decimal.Decimal `json:"tax"`
	PaymentFee       decimal.Decimal `json:"payment_fee"`
	Total            decimal.Decimal `json:"total"`
	ResolvedLocation string          `json:"resolved_location"`
	CreatedAt        time.Time       `json:"created_at"`
}

type Payment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Confirmation is returned to the client once a checkout is persisted.
type Confirmation struct {
	Checkout *Checkout `json:"checkout"`
	Payment  Payment   `json:"payment"`
}
