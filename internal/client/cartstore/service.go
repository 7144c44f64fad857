package cartstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrNoCheckout = errors.New("checkout is not available in this session")

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows transient messages to the shopper.
type Notifier interface {
	Notify(level Level, message string)
}

type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// CheckoutSubmitter is the remote checkout API.
type CheckoutSubmitter interface {
	Checkout(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error)
}

// Service is the shopper's cart. Mutations are serialized; the item list
// only changes once the repository has accepted a change.
type Service struct {
	mu        sync.Mutex
	repo      CartRepository
	submitter CheckoutSubmitter
	notifier  Notifier
	logger    *zap.Logger
	items     []cart.Item
}

func NewService(repo CartRepository, submitter CheckoutSubmitter, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		submitter: submitter,
		notifier:  notifier,
		logger:    logger,
		items:     []cart.Item{},
	}
}

// Load replaces the item list with the repository's.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx)
	return s.apply("load cart", items, err)
}

// Items returns a copy of the current item list.
func (s *Service) Items() []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cart.Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Service) find(itemID string) (cart.Item, bool) {
	for _, item := range s.items {
		if item.ID == itemID {
			return item, true
		}
	}
	return cart.Item{}, false
}

// AddToCart adds quantity of p. Quantities beyond p.Stock are rejected
// before any backend is touched.
func (s *Service) AddToCart(ctx context.Context, p product.Snapshot, quantity int, variant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.reject(cart.ErrInvalidQuantity)
	}
	if p.Stock < quantity {
		return s.reject(fmt.Errorf("%w: only %d of %s left", cart.ErrInsufficientStock, p.Stock, p.Title))
	}

	items, err := s.repo.Add(ctx, p, quantity, variant)
	if err = s.apply("add item to cart", items, err); err != nil {
		return err
	}
	s.notify(LevelSuccess, fmt.Sprintf("Added %s to cart", p.Title))
	return nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
// Increases beyond the line's known stock are rejected.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.remove(ctx, itemID)
	}
	if item, ok := s.find(itemID); ok && quantity > item.Quantity && quantity > item.Product.Stock {
		return s.reject(fmt.Errorf("%w: only %d of %s left", cart.ErrInsufficientStock, item.Product.Stock, item.Product.Title))
	}

	items, err := s.repo.UpdateQuantity(ctx, itemID, quantity)
	return s.apply("update quantity", items, err)
}

func (s *Service) RemoveFromCart(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, itemID)
}

func (s *Service) remove(ctx context.Context, itemID string) error {
	items, err := s.repo.Remove(ctx, itemID)
	return s.apply("remove item from cart", items, err)
}

func (s *Service) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Clear(ctx)
	return s.apply("clear cart", items, err)
}

// TotalPrice is the sum of (sale price or price) times quantity.
func (s *Service) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Subtotal(cart.Lines(s.items))
}

func (s *Service) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// Summary is the cart-page preview: subtotal plus tax, shipping undecided.
func (s *Service) Summary(taxes pricing.TaxTable) pricing.Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Quote(cart.Lines(s.items), taxes)
}

// Checkout passes payload to the remote checkout API.
func (s *Service) Checkout(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error) {
	if s.submitter == nil {
		return nil, ErrNoCheckout
	}
	return s.submitter.Checkout(ctx, payload)
}

// apply adopts items when the repository returned any, then reports err.
func (s *Service) apply(action string, items []cart.Item, err error) error {
	if items != nil {
		s.items = items
	}
	if err != nil {
		return s.fail(action, err)
	}
	return nil
}

func (s *Service) reject(err error) error {
	s.notify(LevelError, reason(err))
	return err
}

// fail reports err to the shopper. An expired session is returned without a
// message; the caller's auth handling owns that.
func (s *Service) fail(action string, err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return err
	}
	if isValidation(err) {
		return s.reject(err)
	}

	message := "Failed to " + action
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message += ": " + apiErr.Message
	}
	s.logger.Warn("[Cart] "+action+" failed", zap.Error(err))
	s.notify(LevelError, message)
	return err
}

func (s *Service) notify(level Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}

func isValidation(err error) bool {
	return errors.Is(err, cart.ErrInsufficientStock) ||
		errors.Is(err, cart.ErrInvalidQuantity) ||
		errors.Is(err, cart.ErrInvalidProduct) ||
		errors.Is(err, cart.ErrItemNotFound) ||
		errors.Is(err, apiclient.ErrRejected)
}
