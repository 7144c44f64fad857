package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository reads the configuration tables. GetFees returns nil, nil when
// no schedule is stored.
type Repository interface {
	ListShippingMethods(ctx context.Context) ([]ShippingMethod, error)
	GetShippingMethod(ctx context.Context, id string) (*ShippingMethod, error)
	ListCoupons(ctx context.Context) ([]Coupon, error)
	GetCoupon(ctx context.Context, code string) (*Coupon, error)
	GetFees(ctx context.Context) (*FeesAndRates, error)
	ListTaxRules(ctx context.Context) ([]pricing.TaxRule, error)
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	methods, err := s.repo.ListShippingMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipping methods: %w", err)
	}
	if methods == nil {
		methods = []ShippingMethod{}
	}
	return methods, nil
}

func (s *Service) ShippingMethod(ctx context.Context, id string) (*ShippingMethod, error) {
	if id == "" {
		return nil, ErrShippingMethodNotFound
	}
	return s.repo.GetShippingMethod(ctx, id)
}

func (s *Service) Coupons(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	if coupons == nil {
		coupons = []Coupon{}
	}
	return coupons, nil
}

// Fees returns the stored fee schedule, or a zero schedule in the default
// currency.
func (s *Service) Fees(ctx context.Context) (FeesAndRates, error) {
	fees, err := s.repo.GetFees(ctx)
	if err != nil {
		return FeesAndRates{}, fmt.Errorf("get fees: %w", err)
	}
	if fees == nil {
		return FeesAndRates{PaymentFee: decimal.Zero, PaymentFeeRate: decimal.Zero, Currency: DefaultCurrency}, nil
	}
	out := *fees
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	return out, nil
}

// TaxTable loads and validates the tax brackets. Overlapping brackets are a
// configuration error.
func (s *Service) TaxTable(ctx context.Context) (pricing.TaxTable, error) {
	rules, err := s.repo.ListTaxRules(ctx)
	if err != nil {
		return pricing.TaxTable{}, fmt.Errorf("list tax rules: %w", err)
	}
	table, err := pricing.NewTaxTable(rules)
	if err != nil {
		s.logger.Error("[Rates] invalid tax configuration", zap.Error(err))
		return pricing.TaxTable{}, err
	}
	return table, nil
}

// ResolveCoupon looks up code and computes its discount on subtotal.
func (s *Service) ResolveCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Coupon, decimal.Decimal, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, decimal.Zero, ErrCouponNotFound
	}
	c, err := s.repo.GetCoupon(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	amount, err := c.Discount(subtotal, now)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("coupon %s: %w", code, err)
	}
	return c, amount, nil
}
