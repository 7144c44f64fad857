package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/example/storefront/internal/infrastructure/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc       *checkout.Service
	repo      *mocks.MockCheckoutRepository
	payments  *mocks.MockPaymentGateway
	publisher *mocks.MockPublisher
	carts     *cart.Service
	cartRepo  *mocks.MockCartRepository
	rates     *mocks.MockRatesRepository
}

func newFixture() fixture {
	sale := dec("40")
	catalog := mocks.NewMockCatalog(
		product.Snapshot{ID: "prod-1", Title: "Lamp", Price: dec("50"), SalePrice: &sale, Stock: 10},
		product.Snapshot{ID: "prod-2", Title: "Bulb", Price: dec("5.50"), Stock: 2},
	)
	ratesRepo := &mocks.MockRatesRepository{
		ShippingMethods: []rates.ShippingMethod{{ID: "std", Name: "Standard", Cost: dec("4.99"), EstimatedDays: 5}},
		Coupons: []rates.Coupon{
			{Code: "TENOFF", DiscountType: rates.DiscountFixed, DiscountValue: dec("10"), Constraints: rates.Constraints{Active: true}},
			{Code: "OLD", DiscountType: rates.DiscountFixed, DiscountValue: dec("10")},
		},
		FeesAndRates: &rates.FeesAndRates{PaymentFee: dec("0.30"), PaymentFeeRate: dec("0"), Currency: "EUR"},
		TaxRules: []pricing.TaxRule{
			{Min: dec("0"), Max: dec("100"), Rate: dec("0.05")},
			{Min: dec("100"), Max: dec("1000"), Rate: dec("0.08")},
		},
	}

	f := fixture{
		repo:      mocks.NewMockCheckoutRepository(),
		payments:  mocks.NewMockPaymentGateway(),
		publisher: mocks.NewMockPublisher(),
		cartRepo:  mocks.NewMockCartRepository(),
		rates:     ratesRepo,
	}
	f.carts = cart.NewService(f.cartRepo, catalog, mocks.NewMockCartCache(), f.publisher, zap.NewNop())
	f.svc = checkout.NewService(
		f.repo,
		catalog,
		rates.NewService(ratesRepo, zap.NewNop()),
		f.payments,
		f.carts,
		f.publisher,
		zap.NewNop(),
	)
	return f
}

func validPayload() checkout.Payload {
	return checkout.Payload{
		Items: []checkout.LineRequest{
			{ProductID: "prod-1", Quantity: 3},
			{ProductID: "prod-2", Quantity: 2},
		},
		ShippingAddress: checkout.Address{Line1: "1 Main St", City: "Lisbon", Country: "pt"},
		ShippingMethod:  "std",
		PaymentMethod:   "card",
	}
}

// ============================================
// Submit Tests
// ============================================

func TestService_Submit_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conf, err := f.svc.Submit(ctx, "user-1", validPayload())

	require.NoError(t, err)
	rec := conf.Checkout
	// 3 * 40 (sale) + 2 * 5.50 = 131
	assert.True(t, dec("131").Equal(rec.Subtotal))
	assert.True(t, dec("10.48").Equal(rec.Tax))
	assert.True(t, dec("4.99").Equal(rec.Shipping))
	assert.True(t, dec("0.30").Equal(rec.PaymentFee))
	assert.True(t, rec.Discount.IsZero())
	assert.True(t, dec("146.77").Equal(rec.Total))
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, "Lisbon, PT", rec.ResolvedLocation)
	assert.Equal(t, "authorized", conf.Payment.Status)
	assert.Equal(t, conf.Payment.ID, rec.PaymentID)

	want := rec.Subtotal.Sub(rec.Discount).Add(rec.Shipping).Add(rec.Tax).Add(rec.PaymentFee)
	assert.True(t, want.Equal(rec.Total))

	require.Len(t, f.payments.AuthorizeCalls, 1)
	assert.True(t, rec.Total.Equal(f.payments.AuthorizeCalls[0].Amount))
	assert.Equal(t, 1, f.repo.Count())
	assert.Contains(t, f.publisher.EventTypes(), checkout.EventCheckoutCreated)
}

func TestService_Submit_AppliesCoupon(t *testing.T) {
	f := newFixture()
	p := validPayload()
	p.CouponCode = " tenoff "

	conf, err := f.svc.Submit(context.Background(), "user-1", p)

	require.NoError(t, err)
	assert.Equal(t, "TENOFF", conf.Checkout.CouponCode)
	assert.True(t, dec("10").Equal(conf.Checkout.Discount))
	assert.True(t, dec("136.77").Equal(conf.Checkout.Total))
}

func TestService_Submit_RejectedCouponStoresNothing(t *testing.T) {
	f := newFixture()
	p := validPayload()
	p.CouponCode = "OLD"

	_, err := f.svc.Submit(context.Background(), "user-1", p)

	assert.ErrorIs(t, err, rates.ErrCouponInactive)
	assert.Equal(t, 0, f.repo.Count())
	assert.Empty(t, f.payments.AuthorizeCalls)
}

func TestService_Submit_ClearsServerCart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "user-1", "prod-1", 1, "", 0)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "user-1", validPayload())
	require.NoError(t, err)

	c, err := f.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *checkout.Payload)
		wantErr error
	}{
		{"no items", func(p *checkout.Payload) { p.Items = nil }, checkout.ErrEmptyCheckout},
		{"no shipping method", func(p *checkout.Payload) { p.ShippingMethod = "" }, checkout.ErrMissingShippingMethod},
		{"no payment method", func(p *checkout.Payload) { p.PaymentMethod = " " }, checkout.ErrMissingPaymentMethod},
		{"zero quantity", func(p *checkout.Payload) { p.Items[0].Quantity = 0 }, checkout.ErrInvalidLine},
		{"unknown shipping method", func(p *checkout.Payload) { p.ShippingMethod = "drone" }, rates.ErrShippingMethodNotFound},
		{"unknown product", func(p *checkout.Payload) { p.Items[0].ProductID = "nope" }, product.ErrProductNotFound},
		{"over stock", func(p *checkout.Payload) { p.Items[1].Quantity = 3 }, cart.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := validPayload()
			tt.mutate(&p)

			_, err := f.svc.Submit(context.Background(), "user-1", p)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.repo.Count())
		})
	}
}

func TestService_Submit_DuplicateLinesAreMergedBeforeStockCheck(t *testing.T) {
	f := newFixture()
	p := validPayload()
	p.Items = append(p.Items, checkout.LineRequest{ProductID: "prod-2", Quantity: 1})

	_, err := f.svc.Submit(context.Background(), "user-1", p)

	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
}

func TestService_Submit_OverlappingTaxConfigFails(t *testing.T) {
	f := newFixture()
	f.rates.TaxRules = []pricing.TaxRule{
		{Min: dec("0"), Max: dec("200"), Rate: dec("0.05")},
		{Min: dec("100"), Max: dec("1000"), Rate: dec("0.08")},
	}

	_, err := f.svc.Submit(context.Background(), "user-1", validPayload())

	assert.ErrorIs(t, err, pricing.ErrOverlappingBrackets)
}

func TestService_Submit_PaymentFailureStoresNothing(t *testing.T) {
	f := newFixture()
	f.payments.AuthorizeErr = errors.New("card declined")

	_, err := f.svc.Submit(context.Background(), "user-1", validPayload())

	assert.ErrorIs(t, err, checkout.ErrPaymentFailed)
	assert.Equal(t, 0, f.repo.Count())
	assert.Empty(t, f.publisher.EventTypes())
}

func TestService_Submit_StoreFailureVoidsPayment(t *testing.T) {
	f := newFixture()
	f.repo.CreateErr = errors.New("postgres down")

	_, err := f.svc.Submit(context.Background(), "user-1", validPayload())

	assert.Error(t, err)
	assert.Len(t, f.payments.VoidCalls, 1)
	assert.Empty(t, f.publisher.EventTypes())
}

func TestService_Submit_PublishFailureStillConfirms(t *testing.T) {
	f := newFixture()
	f.publisher.PublishErr = errors.New("kafka down")

	conf, err := f.svc.Submit(context.Background(), "user-1", validPayload())

	require.NoError(t, err)
	assert.NotEmpty(t, conf.Checkout.ID)
}

// ============================================
// Read Tests
// ============================================

func TestService_GetAndList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conf, err := f.svc.Submit(ctx, "user-1", validPayload())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "user-1", conf.Checkout.ID)
	require.NoError(t, err)
	assert.True(t, conf.Checkout.Total.Equal(got.Total))
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	_, err = f.svc.Get(ctx, "user-2", conf.Checkout.ID)
	assert.ErrorIs(t, err, checkout.ErrCheckoutNotFound)

	list, err := f.svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, "user-2")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAddress_ResolvedLocation(t *testing.T) {
	assert.Equal(t, "Austin, TX, US", checkout.Address{City: "Austin", Region: "TX", Country: "us"}.ResolvedLocation())
	assert.Equal(t, "", checkout.Address{}.ResolvedLocation())
}
