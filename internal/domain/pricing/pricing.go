// Package pricing derives cart and checkout totals. Every function here is
// pure; the same input always yields the same output.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every final amount is rounded to.
const CurrencyPlaces = 2

var ErrTotalMismatch = errors.New("total does not equal subtotal - discount + shipping + tax + payment fee")

// Line is a single priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Preview is the cart-summary view of the order. Shipping is not known yet.
type Preview struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	ShippingDecided bool            `json:"shipping_decided"`
}

// Quote builds the cart-summary preview: total = subtotal + tax.
func Quote(lines []Line, taxes TaxTable) Preview {
	if len(lines) == 0 {
		return Preview{Subtotal: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	}
	subtotal := Subtotal(lines)
	tax := taxes.Tax(subtotal)
	return Preview{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Fees is the payment fee schedule: a flat amount plus a fraction of the
// pre-fee amount.
type Fees struct {
	Flat decimal.Decimal
	Rate decimal.Decimal
}

// Inputs are the server-resolved components of a final checkout price.
type Inputs struct {
	Lines    []Line
	Taxes    TaxTable
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Fees     Fees
}

// Breakdown is the authoritative checkout price.
type Breakdown struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	PaymentFee decimal.Decimal `json:"payment_fee"`
	Total      decimal.Decimal `json:"total"`
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// Finalize computes the final price. Each component is rounded to currency
// precision before the sum so the total equation holds exactly.
func Finalize(in Inputs) Breakdown {
	subtotal := round(Subtotal(in.Lines))

	discount := round(in.Discount)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	shipping := round(in.Shipping)
	tax := round(in.Taxes.Tax(subtotal))

	base := subtotal.Sub(discount).Add(shipping).Add(tax)
	fee := round(in.Fees.Flat.Add(base.Mul(in.Fees.Rate)))
	if fee.IsNegative() {
		fee = decimal.Zero
	}

	return Breakdown{
		Subtotal:   subtotal,
		Discount:   discount,
		Shipping:   shipping,
		Tax:        tax,
		PaymentFee: fee,
		Total:      base.Add(fee),
	}
}

// Verify checks the total equation.
func (b Breakdown) Verify() error {
	want := b.Subtotal.Sub(b.Discount).Add(b.Shipping).Add(b.Tax).Add(b.PaymentFee)
	if !want.Equal(b.Total) {
		return fmt.Errorf("%w: got %s, want %s", ErrTotalMismatch, b.Total, want)
	}
	return nil
}
