package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
)

const AggregateType = "Cart"

const defaultVariant = "default"

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidProduct    = errors.New("product_id is required")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrCartNotFound      = errors.New("cart not found")
	ErrVersionConflict   = errors.New("cart was modified concurrently")
)

// Item is one cart line. ID is unique within its cart.
type Item struct {
	ID              string           `json:"id"`
	Product         product.Snapshot `json:"product"`
	Quantity        int              `json:"quantity"`
	SelectedVariant string           `json:"selected_variant,omitempty"`
}

// Cart is an ordered list of items. Version increments on every applied
// mutation and is the optimistic concurrency token for stored carts.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Items     []Item    `json:"items"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetCartID returns the cart ID for a user (using userID as cartID for simplicity)
func GetCartID(userID string) string {
	return "cart-" + userID
}

// New returns an empty cart for userID. Guest carts pass an empty userID.
func New(userID string, now time.Time) *Cart {
	c := &Cart{UserID: userID, Items: []Item{}, CreatedAt: now, UpdatedAt: now}
	if userID != "" {
		c.ID = GetCartID(userID)
	}
	return c
}

// NewItemID builds the line id {productID}-{variant|default}-{unixMillis}.
func NewItemID(productID, variant string, now time.Time) string {
	if variant == "" {
		variant = defaultVariant
	}
	return fmt.Sprintf("%s-%s-%d", productID, variant, now.UnixMilli())
}

func (c *Cart) touch(now time.Time) {
	c.Version++
	c.UpdatedAt = now
}

func (c *Cart) indexOf(itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Find returns the item with itemID.
func (c *Cart) Find(itemID string) (Item, bool) {
	if i := c.indexOf(itemID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// FindProduct returns the line for productID and variant, if any.
func (c *Cart) FindProduct(productID, variant string) (Item, bool) {
	for _, item := range c.Items {
		if item.Product.ID == productID && item.SelectedVariant == variant {
			return item, true
		}
	}
	return Item{}, false
}

// Add merges quantity into the line for p+variant, or appends a new line.
// The merged quantity may not exceed p.Stock.
func (c *Cart) Add(p product.Snapshot, quantity int, variant string, now time.Time) (Item, error) {
	if p.ID == "" {
		return Item{}, ErrInvalidProduct
	}
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if p.Stock < quantity {
		return Item{}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, quantity, p.Stock)
	}

	for i, item := range c.Items {
		if item.Product.ID != p.ID || item.SelectedVariant != variant {
			continue
		}
		merged := item.Quantity + quantity
		if merged > p.Stock {
			return Item{}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, merged, p.Stock)
		}
		c.Items[i].Quantity = merged
		c.Items[i].Product = p
		c.touch(now)
		return c.Items[i], nil
	}

	id := NewItemID(p.ID, variant, now)
	for n := 1; c.indexOf(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", NewItemID(p.ID, variant, now), n)
	}
	item := Item{ID: id, Product: p, Quantity: quantity, SelectedVariant: variant}
	c.Items = append(c.Items, item)
	c.touch(now)
	return item, nil
}

// SetQuantity sets a line's quantity. Zero or less removes the line.
// Increases beyond the line's known stock are rejected; decreases never are.
func (c *Cart) SetQuantity(itemID string, quantity int, now time.Time) error {
	if quantity <= 0 {
		return c.Remove(itemID, now)
	}
	i := c.indexOf(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	item := c.Items[i]
	if quantity > item.Quantity && quantity > item.Product.Stock {
		return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, quantity, item.Product.Stock)
	}
	c.Items[i].Quantity = quantity
	c.touch(now)
	return nil
}

// Remove drops the line with itemID.
func (c *Cart) Remove(itemID string, now time.Time) error {
	i := c.indexOf(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch(now)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear(now time.Time) {
	c.Items = []Item{}
	c.touch(now)
}

// Lines returns the cart's pricing lines.
func (c *Cart) Lines() []pricing.Line {
	return Lines(c.Items)
}

// TotalPrice is the sum of unit price times quantity.
func (c *Cart) TotalPrice() decimal.Decimal {
	return pricing.Subtotal(c.Lines())
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Lines converts items to pricing lines.
func Lines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{UnitPrice: item.Product.UnitPrice(), Quantity: item.Quantity})
	}
	return lines
}

// Clone returns a deep copy safe to mutate.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
