package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/google/uuid"
)

// MockCheckoutRepository is an in-memory checkout.Repository
type MockCheckoutRepository struct {
	mu      sync.Mutex
	records map[string]*checkout.Checkout
	order   []string

	CreateErr error
}

func NewMockCheckoutRepository() *MockCheckoutRepository {
	return &MockCheckoutRepository{records: make(map[string]*checkout.Checkout)}
}

func (m *MockCheckoutRepository) Create(ctx context.Context, c *checkout.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	copied := *c
	m.records[c.ID] = &copied
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MockCheckoutRepository) Get(ctx context.Context, id string) (*checkout.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.records[id]
	if !ok {
		return nil, checkout.ErrCheckoutNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *MockCheckoutRepository) ListByUser(ctx context.Context, userID string) ([]*checkout.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*checkout.Checkout
	for _, id := range m.order {
		if c := m.records[id]; c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Count returns the number of stored records
func (m *MockCheckoutRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MockPaymentGateway authorizes every payment unless AuthorizeErr is set
type MockPaymentGateway struct {
	mu sync.Mutex

	AuthorizeCalls []checkout.PaymentRequest
	VoidCalls      []string
	AuthorizeErr   error
	VoidErr        error
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) Authorize(ctx context.Context, req checkout.PaymentRequest) (*checkout.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuthorizeCalls = append(m.AuthorizeCalls, req)
	if m.AuthorizeErr != nil {
		return nil, m.AuthorizeErr
	}
	return &checkout.Payment{ID: "pay-" + uuid.New().String(), Status: "authorized"}, nil
}

func (m *MockPaymentGateway) Void(ctx context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VoidCalls = append(m.VoidCalls, paymentID)
	return m.VoidErr
}
