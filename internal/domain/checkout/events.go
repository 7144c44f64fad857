package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventCheckoutCreated = "CheckoutCreated"

type CheckoutCreated struct {
	CheckoutID string          `json:"checkout_id"`
	UserID     string          `json:"user_id"`
	Items      []Line          `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	PaymentID  string          `json:"payment_id"`
	CreatedAt  time.Time       `json:"created_at"`
}
