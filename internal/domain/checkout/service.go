package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/example/storefront/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository persists checkout records. Create is atomic: it stores the
// record with all of its lines or nothing.
type Repository interface {
	Create(ctx context.Context, c *Checkout) error
	Get(ctx context.Context, id string) (*Checkout, error)
	ListByUser(ctx context.Context, userID string) ([]*Checkout, error)
}

type PaymentRequest struct {
	Reference string          `json:"checkout_ref"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (*Payment, error)
	Void(ctx context.Context, paymentID string) error
}

// CartClearer empties a user's server cart once the checkout is stored.
type CartClearer interface {
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

type Service struct {
	repo      Repository
	catalog   product.Repository
	rates     *rates.Service
	payments  PaymentGateway
	carts     CartClearer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	catalog product.Repository,
	ratesSvc *rates.Service,
	payments PaymentGateway,
	carts CartClearer,
	publisher events.Publisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		rates:     ratesSvc,
		payments:  payments,
		carts:     carts,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit prices the payload from server-side data, authorizes payment and
// persists the checkout record. Nothing is stored when any step fails.
func (s *Service) Submit(ctx context.Context, userID string, payload Payload) (*Confirmation, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	lines, err := s.resolveLines(ctx, payload.Items)
	if err != nil {
		return nil, err
	}
	pricingLines := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		pricingLines = append(pricingLines, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	method, err := s.rates.ShippingMethod(ctx, payload.ShippingMethod)
	if err != nil {
		return nil, err
	}
	taxes, err := s.rates.TaxTable(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := s.rates.Fees(ctx)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	couponCode := rates.NormalizeCode(payload.CouponCode)
	if couponCode != "" {
		_, discount, err = s.rates.ResolveCoupon(ctx, couponCode, pricing.Subtotal(pricingLines), now)
		if err != nil {
			return nil, err
		}
	}

	breakdown := pricing.Finalize(pricing.Inputs{
		Lines:    pricingLines,
		Taxes:    taxes,
		Discount: discount,
		Shipping: method.Cost,
		Fees:     fees.Fees(),
	})
	if err := breakdown.Verify(); err != nil {
		return nil, err
	}

	record := &Checkout{
		ID:               uuid.New().String(),
		UserID:           userID,
		Items:            lines,
		ShippingAddress:  payload.ShippingAddress,
		ShippingMethod:   method.ID,
		PaymentMethod:    payload.PaymentMethod,
		CouponCode:       couponCode,
		Currency:         fees.Currency,
		Subtotal:         breakdown.Subtotal,
		Discount:         breakdown.Discount,
		Shipping:         breakdown.Shipping,
		Tax:              breakdown.Tax,
		PaymentFee:       breakdown.PaymentFee,
		Total:            breakdown.Total,
		ResolvedLocation: payload.ShippingAddress.ResolvedLocation(),
		CreatedAt:        now,
	}

	payment, err := s.payments.Authorize(ctx, PaymentRequest{
		Reference: record.ID,
		Amount:    record.Total,
		Currency:  record.Currency,
		Method:    record.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	record.PaymentID = payment.ID

	if err := s.repo.Create(ctx, record); err != nil {
		s.voidPayment(payment.ID)
		return nil, fmt.Errorf("store checkout: %w", err)
	}

	s.logger.Info("[Checkout] checkout created",
		zap.String("checkout_id", record.ID),
		zap.String("user_id", userID),
		zap.String("total", record.Total.String()),
	)

	s.publishCreated(ctx, record)
	if _, err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Warn("[Checkout] failed to clear cart after checkout", zap.String("user_id", userID), zap.Error(err))
	}

	return &Confirmation{Checkout: record, Payment: *payment}, nil
}

func (s *Service) resolveLines(ctx context.Context, reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for _, req := range reqs {
		p, err := s.catalog.Get(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < req.Quantity {
			return nil, fmt.Errorf("%w: %s has %d, %d requested", cart.ErrInsufficientStock, p.ID, p.Stock, req.Quantity)
		}
		lines = append(lines, Line{
			ProductID: p.ID,
			Title:     p.Title,
			UnitPrice: p.UnitPrice(),
			Quantity:  req.Quantity,
			Variant:   req.Variant,
		})
	}
	return lines, nil
}

func (s *Service) voidPayment(paymentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.payments.Void(ctx, paymentID); err != nil {
		s.logger.Error("[Checkout] failed to void payment", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (s *Service) publishCreated(ctx context.Context, c *Checkout) {
	event, err := events.New(c.ID, AggregateType, EventCheckoutCreated, 1, CheckoutCreated{
		CheckoutID: c.ID,
		UserID:     c.UserID,
		Items:      c.Items,
		Total:      c.Total,
		Currency:   c.Currency,
		PaymentID:  c.PaymentID,
		CreatedAt:  c.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("[Checkout] failed to build event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, c.ID, event); err != nil {
		s.logger.Warn("[Checkout] failed to publish event", zap.String("checkout_id", c.ID), zap.Error(err))
	}
}

// Get returns a checkout owned by userID. Other users' records read as
// not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*Checkout, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrCheckoutNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*Checkout, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Checkout{}
	}
	return list, nil
}

// IsValidation reports whether err is a client-side input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyCheckout) ||
		errors.Is(err, ErrMissingShippingMethod) ||
		errors.Is(err, ErrMissingPaymentMethod) ||
		errors.Is(err, ErrInvalidLine)
}
