package mongodb

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidAmount is an amount with no exact Decimal128 or decimal form.
var ErrInvalidAmount = errors.New("invalid money amount")

// money converts amounts to and from Decimal128 so stored values keep their
// exact digits. It keeps the first failure; converters check err once at
// the end.
type money struct {
	err error
}

func (m *money) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *money) toDB(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		m.fail(fmt.Errorf("%w: %s: %v", ErrInvalidAmount, d.String(), err))
	}
	return v
}

func (m *money) fromDB(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		m.fail(fmt.Errorf("%w: %s: %v", ErrInvalidAmount, v.String(), err))
	}
	return d
}

func (m *money) toDBPtr(d *decimal.Decimal) *primitive.Decimal128 {
	if d == nil {
		return nil
	}
	v := m.toDB(*d)
	return &v
}

func (m *money) fromDBPtr(v *primitive.Decimal128) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := m.fromDB(*v)
	return &d
}

type productDoc struct {
	ID        string                `bson:"_id"`
	Title     string                `bson:"title"`
	Price     primitive.Decimal128  `bson:"price"`
	SalePrice *primitive.Decimal128 `bson:"sale_price,omitempty"`
	Stock     int                   `bson:"stock"`
}

func (m *money) productDoc(p product.Snapshot) productDoc {
	return productDoc{
		ID:        p.ID,
		Title:     p.Title,
		Price:     m.toDB(p.Price),
		SalePrice: m.toDBPtr(p.SalePrice),
		Stock:     p.Stock,
	}
}

func (m *money) product(d productDoc) product.Snapshot {
	return product.Snapshot{
		ID:        d.ID,
		Title:     d.Title,
		Price:     m.fromDB(d.Price),
		SalePrice: m.fromDBPtr(d.SalePrice),
		Stock:     d.Stock,
	}
}

func fromProduct(p product.Snapshot) (productDoc, error) {
	var m money
	doc := m.productDoc(p)
	return doc, m.err
}

func (d productDoc) toProduct() (product.Snapshot, error) {
	var m money
	p := m.product(d)
	return p, m.err
}

type cartItemDoc struct {
	ID              string     `bson:"id"`
	Product         productDoc `bson:"product"`
	Quantity        int        `bson:"quantity"`
	SelectedVariant string     `bson:"selected_variant,omitempty"`
}

type cartDoc struct {
	ID        string        `bson:"_id"`
	UserID    string        `bson:"user_id"`
	Items     []cartItemDoc `bson:"items"`
	Version   int           `bson:"version"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func fromCart(c *cart.Cart) (cartDoc, error) {
	var m money
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDoc{
			ID:              item.ID,
			Product:         m.productDoc(item.Product),
			Quantity:        item.Quantity,
			SelectedVariant: item.SelectedVariant,
		})
	}
	id := c.ID
	if id == "" {
		id = cart.GetCartID(c.UserID)
	}
	return cartDoc{
		ID:        id,
		UserID:    c.UserID,
		Items:     items,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, m.err
}

func (d cartDoc) toCart() (*cart.Cart, error) {
	var m money
	items := make([]cart.Item, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, cart.Item{
			ID:              item.ID,
			Product:         m.product(item.Product),
			Quantity:        item.Quantity,
			SelectedVariant: item.SelectedVariant,
		})
	}
	if m.err != nil {
		return nil, m.err
	}
	return &cart.Cart{
		ID:        d.ID,
		UserID:    d.UserID,
		Items:     items,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type shippingMethodDoc struct {
	ID            string               `bson:"_id"`
	Name          string               `bson:"name"`
	Cost          primitive.Decimal128 `bson:"cost"`
	EstimatedDays int                  `bson:"estimated_days"`
}

func fromShippingMethod(sm rates.ShippingMethod) (shippingMethodDoc, error) {
	var m money
	doc := shippingMethodDoc{ID: sm.ID, Name: sm.Name, Cost: m.toDB(sm.Cost), EstimatedDays: sm.EstimatedDays}
	return doc, m.err
}

func (d shippingMethodDoc) toShippingMethod() (rates.ShippingMethod, error) {
	var m money
	sm := rates.ShippingMethod{ID: d.ID, Name: d.Name, Cost: m.fromDB(d.Cost), EstimatedDays: d.EstimatedDays}
	return sm, m.err
}

type couponDoc struct {
	Code          string                `bson:"code"`
	DiscountType  string                `bson:"discount_type"`
	DiscountValue primitive.Decimal128  `bson:"discount_value"`
	MinSubtotal   *primitive.Decimal128 `bson:"min_subtotal,omitempty"`
	MaxDiscount   *primitive.Decimal128 `bson:"max_discount,omitempty"`
	ExpiresAt     *time.Time            `bson:"expires_at,omitempty"`
	Active        bool                  `bson:"active"`
}

func fromCoupon(c rates.Coupon) (couponDoc, error) {
	var m money
	doc := couponDoc{
		Code:          rates.NormalizeCode(c.Code),
		DiscountType:  string(c.DiscountType),
		DiscountValue: m.toDB(c.DiscountValue),
		MinSubtotal:   m.toDBPtr(c.Constraints.MinSubtotal),
		MaxDiscount:   m.toDBPtr(c.Constraints.MaxDiscount),
		ExpiresAt:     c.Constraints.ExpiresAt,
		Active:        c.Constraints.Active,
	}
	return doc, m.err
}

func (d couponDoc) toCoupon() (rates.Coupon, error) {
	var m money
	c := rates.Coupon{
		Code:          d.Code,
		DiscountType:  rates.DiscountType(d.DiscountType),
		DiscountValue: m.fromDB(d.DiscountValue),
		Constraints: rates.Constraints{
			MinSubtotal: m.fromDBPtr(d.MinSubtotal),
			MaxDiscount: m.fromDBPtr(d.MaxDiscount),
			ExpiresAt:   d.ExpiresAt,
			Active:      d.Active,
		},
	}
	return c, m.err
}

// feesDocID is the single fee schedule document.
const feesDocID = "default"

type feesDoc struct {
	ID             string               `bson:"_id"`
	PaymentFee     primitive.Decimal128 `bson:"payment_fee"`
	PaymentFeeRate primitive.Decimal128 `bson:"payment_fee_rate"`
	Currency       string               `bson:"currency"`
}

func fromFees(f rates.FeesAndRates) (feesDoc, error) {
	var m money
	doc := feesDoc{
		ID:             feesDocID,
		PaymentFee:     m.toDB(f.PaymentFee),
		PaymentFeeRate: m.toDB(f.PaymentFeeRate),
		Currency:       f.Currency,
	}
	return doc, m.err
}

func (d feesDoc) toFees() (rates.FeesAndRates, error) {
	var m money
	f := rates.FeesAndRates{
		PaymentFee:     m.fromDB(d.PaymentFee),
		PaymentFeeRate: m.fromDB(d.PaymentFeeRate),
		Currency:       d.Currency,
	}
	return f, m.err
}

type taxRuleDoc struct {
	Min  primitive.Decimal128 `bson:"min"`
	Max  primitive.Decimal128 `bson:"max"`
	Rate primitive.Decimal128 `bson:"rate"`
}

func fromTaxRule(r pricing.TaxRule) (taxRuleDoc, error) {
	var m money
	doc := taxRuleDoc{Min: m.toDB(r.Min), Max: m.toDB(r.Max), Rate: m.toDB(r.Rate)}
	return doc, m.err
}

func (d taxRuleDoc) toTaxRule() (pricing.TaxRule, error) {
	var m money
	r := pricing.TaxRule{Min: m.fromDB(d.Min), Max: m.fromDB(d.Max), Rate: m.fromDB(d.Rate)}
	return r, m.err
}
