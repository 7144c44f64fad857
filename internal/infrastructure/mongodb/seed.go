package mongodb

import (
	"context"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
)

func seedAmount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Seed upserts a small demo catalog and configuration set. It is idempotent.
func Seed(ctx context.Context, db *mongo.Database) error {
	sale := seedAmount("24.00")
	products := []product.Snapshot{
		{ID: "mug-classic", Title: "Classic Mug", Price: seedAmount("12.50"), Stock: 40},
		{ID: "tee-logo", Title: "Logo Tee", Price: seedAmount("29.00"), SalePrice: &sale, Stock: 15},
		{ID: "poster-a2", Title: "A2 Poster", Price: seedAmount("18.00"), Stock: 5},
	}
	productRepo := NewProductRepository(db)
	for _, p := range products {
		if err := productRepo.Upsert(ctx, p); err != nil {
			return err
		}
	}

	ratesRepo := NewRatesRepository(db)
	methods := []rates.ShippingMethod{
		{ID: "standard", Name: "Standard", Cost: seedAmount("4.99"), EstimatedDays: 5},
		{ID: "express", Name: "Express", Cost: seedAmount("14.99"), EstimatedDays: 1},
	}
	for _, m := range methods {
		if err := ratesRepo.PutShippingMethod(ctx, m); err != nil {
			return err
		}
	}

	maxDiscount := seedAmount("20")
	minSubtotal := seedAmount("50")
	coupons := []rates.Coupon{
		{Code: "WELCOME10", DiscountType: rates.DiscountPercentage, DiscountValue: seedAmount("10"),
			Constraints: rates.Constraints{MaxDiscount: &maxDiscount, Active: true}},
		{Code: "FIVEOFF", DiscountType: rates.DiscountFixed, DiscountValue: seedAmount("5"),
			Constraints: rates.Constraints{MinSubtotal: &minSubtotal, Active: true}},
	}
	for _, c := range coupons {
		if err := ratesRepo.PutCoupon(ctx, c); err != nil {
			return err
		}
	}

	if err := ratesRepo.PutFees(ctx, rates.FeesAndRates{
		PaymentFee:     seedAmount("0.30"),
		PaymentFeeRate: seedAmount("0.029"),
		Currency:       rates.DefaultCurrency,
	}); err != nil {
		return err
	}

	return ratesRepo.ReplaceTaxRules(ctx, []pricing.TaxRule{
		{Min: seedAmount("0"), Max: seedAmount("100"), Rate: seedAmount("0.05")},
		{Min: seedAmount("100"), Max: seedAmount("1000"), Rate: seedAmount("0.08")},
	})
}
