package mocks

import (
	"context"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/rates"
)

// MockRatesRepository serves fixed configuration tables
type MockRatesRepository struct {
	ShippingMethods []rates.ShippingMethod
	Coupons         []rates.Coupon
	FeesAndRates    *rates.FeesAndRates
	TaxRules        []pricing.TaxRule

	Err error
}

func (m *MockRatesRepository) ListShippingMethods(ctx context.Context) ([]rates.ShippingMethod, error) {
	return m.ShippingMethods, m.Err
}

func (m *MockRatesRepository) GetShippingMethod(ctx context.Context, id string) (*rates.ShippingMethod, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, sm := range m.ShippingMethods {
		if sm.ID == id {
			out := sm
			return &out, nil
		}
	}
	return nil, rates.ErrShippingMethodNotFound
}

func (m *MockRatesRepository) ListCoupons(ctx context.Context) ([]rates.Coupon, error) {
	return m.Coupons, m.Err
}

func (m *MockRatesRepository) GetCoupon(ctx context.Context, code string) (*rates.Coupon, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, c := range m.Coupons {
		if rates.NormalizeCode(c.Code) == code {
			out := c
			return &out, nil
		}
	}
	return nil, rates.ErrCouponNotFound
}

func (m *MockRatesRepository) GetFees(ctx context.Context) (*rates.FeesAndRates, error) {
	return m.FeesAndRates, m.Err
}

func (m *MockRatesRepository) ListTaxRules(ctx context.Context) ([]pricing.TaxRule, error) {
	return m.TaxRules, m.Err
}
