package cartstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/client/storage"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGuestService(t *testing.T) (*Service, *storage.MemoryStorage, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStorage()
	notifier := &recordingNotifier{}
	svc := NewService(NewLocalCartRepository(store), nil, notifier, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc, store, notifier
}

func newSignedInService(t *testing.T) (*Service, *fakeCartAPI, *recordingNotifier) {
	t.Helper()
	api := newFakeCartAPI(mug(), tee())
	notifier := &recordingNotifier{}
	svc := NewService(NewRemoteCartRepository(api), nil, notifier, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc, api, notifier
}

// ============================================
// Totals
// ============================================

func TestService_Totals(t *testing.T) {
	svc, _, _ := newGuestService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 2, ""))
	require.NoError(t, svc.AddToCart(ctx, tee(), 1, ""))

	// 2 * 12.50 + 1 * 20 (sale)
	assert.True(t, dec("45").Equal(svc.TotalPrice()))
	assert.Equal(t, 3, svc.TotalItems())
}

func TestService_EmptyCartTotalsAreZero(t *testing.T) {
	svc, _, _ := newGuestService(t)
	taxes, err := pricing.NewTaxTable([]pricing.TaxRule{{Min: dec("0"), Max: dec("100"), Rate: dec("0.05")}})
	require.NoError(t, err)

	summary := svc.Summary(taxes)

	assert.True(t, svc.TotalPrice().IsZero())
	assert.Zero(t, svc.TotalItems())
	assert.True(t, summary.Total.IsZero())
	assert.True(t, summary.Tax.IsZero())
}

func TestService_Summary(t *testing.T) {
	svc, _, _ := newGuestService(t)
	require.NoError(t, svc.AddToCart(context.Background(), mug(), 4, ""))
	taxes, err := pricing.NewTaxTable([]pricing.TaxRule{
		{Min: dec("0"), Max: dec("100"), Rate: dec("0.05")},
		{Min: dec("100"), Max: dec("1000"), Rate: dec("0.08")},
	})
	require.NoError(t, err)

	summary := svc.Summary(taxes)

	assert.True(t, dec("50").Equal(summary.Subtotal))
	assert.True(t, dec("2.5").Equal(summary.Tax))
	assert.True(t, dec("52.5").Equal(summary.Total))
	assert.False(t, summary.ShippingDecided)
}

// ============================================
// Guest Mode
// ============================================

func TestService_AddOverStockChangesNothing(t *testing.T) {
	svc, store, notifier := newGuestService(t)

	err := svc.AddToCart(context.Background(), tee(), 3, "")

	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
	assert.Empty(t, svc.Items())
	_, ok, _ := store.Get(GuestCartKey)
	assert.False(t, ok)
	require.Len(t, notifier.errors(), 1)
	assert.Contains(t, notifier.errors()[0], "only 2 of Tee left")
}

func TestService_AddRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, notifier := newGuestService(t)

	err := svc.AddToCart(context.Background(), mug(), 0, "")

	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.Len(t, notifier.errors(), 1)
}

func TestService_UpdateToZeroRemoves(t *testing.T) {
	svc, _, _ := newGuestService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 2, ""))
	id := svc.Items()[0].ID

	require.NoError(t, svc.UpdateQuantity(ctx, id, 0))

	assert.Empty(t, svc.Items())
}

func TestService_UpdateIncreaseBeyondStockRejected(t *testing.T) {
	svc, _, notifier := newGuestService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, tee(), 1, ""))
	id := svc.Items()[0].ID

	err := svc.UpdateQuantity(ctx, id, 5)

	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
	assert.Equal(t, 1, svc.Items()[0].Quantity)
	assert.NotEmpty(t, notifier.errors())
}

func TestService_ClearRemovesStorageEntry(t *testing.T) {
	svc, store, _ := newGuestService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 1, ""))

	require.NoError(t, svc.ClearCart(ctx))

	assert.Zero(t, svc.TotalItems())
	_, ok, _ := store.Get(GuestCartKey)
	assert.False(t, ok)
}

func TestService_GuestCartSurvivesReload(t *testing.T) {
	svc, store, _ := newGuestService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 2, ""))
	require.NoError(t, svc.AddToCart(ctx, tee(), 1, "L"))

	reloaded := NewService(NewLocalCartRepository(store), nil, nil, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))

	want, got := svc.Items(), reloaded.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
	}
	assert.True(t, svc.TotalPrice().Equal(reloaded.TotalPrice()))
}

func TestService_RemoveUnknownItem(t *testing.T) {
	svc, _, notifier := newGuestService(t)

	err := svc.RemoveFromCart(context.Background(), "nope")

	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Len(t, notifier.errors(), 1)
}

// ============================================
// Signed-in Mode
// ============================================

func TestService_SignedInMutationsFollowServer(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToCart(ctx, mug(), 2, ""))
	require.Len(t, svc.Items(), 1)
	id := svc.Items()[0].ID

	require.NoError(t, svc.UpdateQuantity(ctx, id, 3))
	assert.Equal(t, 3, svc.Items()[0].Quantity)

	require.NoError(t, svc.RemoveFromCart(ctx, id))
	assert.Empty(t, svc.Items())
	assert.Empty(t, notifier.errors())
	assert.Equal(t, api.cart.Version, 3)
}

func TestService_NetworkFailureLeavesItemsUnchanged(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 1, ""))
	before := svc.Items()

	api.failNext = errors.New("dial tcp: connection refused")
	err := svc.AddToCart(ctx, tee(), 1, "")

	require.Error(t, err)
	assert.Equal(t, before, svc.Items())
	require.Len(t, notifier.errors(), 1)
	assert.Equal(t, "Failed to add item to cart", notifier.errors()[0])
}

func TestService_ServerMessageIsShown(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	api.failNext = &apiclient.APIError{Status: http.StatusNotFound, Message: "product not found"}

	err := svc.AddToCart(context.Background(), mug(), 1, "")

	require.Error(t, err)
	assert.Equal(t, []string{"Failed to add item to cart: product not found"}, notifier.errors())
}

func TestService_ExpiredSessionIsNotNotified(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	api.failNext = &apiclient.APIError{Status: http.StatusUnauthorized, Message: "token expired"}

	err := svc.AddToCart(context.Background(), mug(), 1, "")

	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.Empty(t, notifier.errors())
	assert.Empty(t, svc.Items())
}

func TestService_ConflictShowsServerCart(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 1, ""))

	api.otherDevice(tee())
	err := svc.AddToCart(ctx, mug(), 1, "")

	assert.ErrorIs(t, err, apiclient.ErrConflict)
	assert.Len(t, svc.Items(), 2)
	assert.Len(t, notifier.errors(), 1)
}

func TestService_ServerStockRejectionIsValidationMessage(t *testing.T) {
	svc, api, notifier := newSignedInService(t)
	ctx := context.Background()
	api.otherDevice(tee())
	require.NoError(t, svc.Load(ctx))

	err := svc.AddToCart(ctx, tee(), 2, "")

	assert.ErrorIs(t, err, apiclient.ErrRejected)
	assert.NotErrorIs(t, err, apiclient.ErrConflict)
	require.Len(t, notifier.errors(), 1)
	assert.Equal(t, "insufficient stock: 3 requested, 2 available", notifier.errors()[0])
	assert.Len(t, svc.Items(), 1)
}

func TestService_SignedInIncreaseBeyondStockRejectedLocally(t *testing.T) {
	svc, api, _ := newSignedInService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, tee(), 1, ""))
	writes := len(api.pinned)

	err := svc.UpdateQuantity(ctx, svc.Items()[0].ID, 4)

	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
	assert.Equal(t, writes, len(api.pinned), "no request is sent")
}

func TestService_SignedInClear(t *testing.T) {
	svc, _, _ := newSignedInService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddToCart(ctx, mug(), 1, ""))

	require.NoError(t, svc.ClearCart(ctx))

	assert.Zero(t, svc.TotalItems())
}

func TestService_LoadFailure(t *testing.T) {
	api := newFakeCartAPI()
	api.getErr = fmt.Errorf("GET cart: %w", errors.New("timeout"))
	notifier := &recordingNotifier{}
	svc := NewService(NewRemoteCartRepository(api), nil, notifier, zap.NewNop())

	err := svc.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"Failed to load cart"}, notifier.errors())
	assert.NotNil(t, svc.Items())
}

// ============================================
// Checkout
// ============================================

func TestService_CheckoutPassesThrough(t *testing.T) {
	submitter := &fakeSubmitter{}
	svc := NewService(NewLocalCartRepository(storage.NewMemoryStorage()), submitter, nil, zap.NewNop())
	payload := checkout.Payload{
		Items:          []checkout.LineRequest{{ProductID: "mug", Quantity: 1}},
		ShippingMethod: "standard",
		PaymentMethod:  "card",
	}

	conf, err := svc.Checkout(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, "chk-1", conf.Checkout.ID)
	assert.Equal(t, []checkout.Payload{payload}, submitter.payloads)
}

func TestService_CheckoutWithoutSubmitter(t *testing.T) {
	svc, _, _ := newGuestService(t)

	_, err := svc.Checkout(context.Background(), checkout.Payload{})

	assert.ErrorIs(t, err, ErrNoCheckout)
}
