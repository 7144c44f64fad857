package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/product"
)

// MockCatalog is an in-memory product.Repository
type MockCatalog struct {
	mu       sync.RWMutex
	products map[string]product.Snapshot

	GetCalls []string
	GetErr   error
}

func NewMockCatalog(products ...product.Snapshot) *MockCatalog {
	m := &MockCatalog{products: make(map[string]product.Snapshot)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Put adds or replaces a product
func (m *MockCatalog) Put(p product.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MockCatalog) Get(ctx context.Context, id string) (*product.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, id)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return &p, nil
}
