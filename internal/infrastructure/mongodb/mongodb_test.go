package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in -short mode")
	}
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "storefront_test")
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))
	return db
}

func TestDecimal128_KeepsExactDigits(t *testing.T) {
	var m money
	for _, s := range []string{"0", "19.99", "0.029", "123456789.01"} {
		d := decimal.RequireFromString(s)
		assert.True(t, d.Equal(m.fromDB(m.toDB(d))), s)
	}
	assert.Nil(t, m.fromDBPtr(m.toDBPtr(nil)))
	assert.NoError(t, m.err)
}

func TestDecimal128_UnreadableAmountIsAnError(t *testing.T) {
	nan := primitive.NewDecimal128(0x7C00000000000000, 0)

	_, err := productDoc{ID: "mug", Title: "Mug", Price: nan, Stock: 1}.toProduct()
	assert.ErrorIs(t, err, ErrInvalidAmount)

	price, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)
	_, err = cartDoc{
		ID:     "cart-user-1",
		UserID: "user-1",
		Items: []cartItemDoc{{
			ID:       "mug-default",
			Product:  productDoc{ID: "mug", Price: price, SalePrice: &nan},
			Quantity: 1,
		}},
	}.toCart()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// ============================================
// Cart Repository Tests
// ============================================

func TestCartRepository_GetNotFound(t *testing.T) {
	repo := NewCartRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestCartRepository_SaveAndVersioning(t *testing.T) {
	repo := NewCartRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	sale := decimal.RequireFromString("7.25")
	c := cart.New("user-1", now)
	_, err := c.Add(product.Snapshot{ID: "p1", Title: "Mug", Price: decimal.RequireFromString("9.99"), SalePrice: &sale, Stock: 3}, 2, "red", now)
	require.NoError(t, err)
	require.Equal(t, 1, c.Version)

	require.NoError(t, repo.Save(ctx, c, 0))

	stored, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	require.Len(t, stored.Items, 1)
	assert.True(t, decimal.RequireFromString("14.50").Equal(stored.TotalPrice()))
	assert.Equal(t, "red", stored.Items[0].SelectedVariant)

	// a second first-write for the same user loses
	assert.ErrorIs(t, repo.Save(ctx, cart.New("user-1", now), 0), cart.ErrVersionConflict)

	stored.Clear(now)
	require.NoError(t, repo.Save(ctx, stored, 1))

	// stale writer still at version 1
	assert.ErrorIs(t, repo.Save(ctx, c, 1), cart.ErrVersionConflict)

	latest, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Empty(t, latest.Items)
}

// ============================================
// Product / Rates Repository Tests
// ============================================

func TestProductRepository_UpsertAndGet(t *testing.T) {
	repo := NewProductRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, product.Snapshot{ID: "p1", Title: "Mug", Price: decimal.RequireFromString("9.99"), Stock: 3}))
	require.NoError(t, repo.Upsert(ctx, product.Snapshot{ID: "p1", Title: "Mug", Price: decimal.RequireFromString("8.99"), Stock: 1}))

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("8.99").Equal(p.Price))
	assert.Nil(t, p.SalePrice)
	assert.Equal(t, 1, p.Stock)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestRatesRepository_SeededConfiguration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db))
	require.NoError(t, Seed(ctx, db))

	repo := NewRatesRepository(db)

	methods, err := repo.ListShippingMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "standard", methods[0].ID)

	c, err := repo.GetCoupon(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, rates.DiscountPercentage, c.DiscountType)
	require.NotNil(t, c.Constraints.MaxDiscount)

	_, err = repo.GetCoupon(ctx, "NOPE")
	assert.ErrorIs(t, err, rates.ErrCouponNotFound)

	fees, err := repo.GetFees(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.029").Equal(fees.PaymentFeeRate))

	rules, err := repo.ListTaxRules(ctx)
	require.NoError(t, err)
	table, err := pricing.NewTaxTable(rules)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12").Equal(table.Tax(decimal.RequireFromString("150"))))
}

func TestRatesRepository_RejectsOverlappingTaxRules(t *testing.T) {
	repo := NewRatesRepository(setupTestDB(t))

	err := repo.ReplaceTaxRules(context.Background(), []pricing.TaxRule{
		{Min: decimal.Zero, Max: decimal.NewFromInt(200), Rate: decimal.RequireFromString("0.05")},
		{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(300), Rate: decimal.RequireFromString("0.08")},
	})

	assert.ErrorIs(t, err, pricing.ErrOverlappingBrackets)
}

func TestRatesRepository_FeesMissing(t *testing.T) {
	repo := NewRatesRepository(setupTestDB(t))

	fees, err := repo.GetFees(context.Background())

	require.NoError(t, err)
	assert.Nil(t, fees)
}
