package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/cart"
)

// MockCartRepository is an in-memory cart.Repository with version checks
type MockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart

	// For tracking calls in tests
	SaveCalls []SaveCall
	GetErr    error
	SaveErr   error
	// SaveCallback runs before the version check when set
	SaveCallback func(c *cart.Cart, expectedVersion int) error
}

// SaveCall records parameters passed to Save
type SaveCall struct {
	UserID          string
	ExpectedVersion int
	Items           int
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]*cart.Cart)}
}

// Put seeds a stored cart
func (m *MockCartRepository) Put(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

func (m *MockCartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *MockCartRepository) Save(ctx context.Context, c *cart.Cart, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, SaveCall{UserID: c.UserID, ExpectedVersion: expectedVersion, Items: len(c.Items)})

	if m.SaveCallback != nil {
		if err := m.SaveCallback(c, expectedVersion); err != nil {
			return err
		}
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}

	current := 0
	if stored, ok := m.carts[c.UserID]; ok {
		current = stored.Version
	}
	if current != expectedVersion {
		return cart.ErrVersionConflict
	}
	m.carts[c.UserID] = c.Clone()
	return nil
}

// MockCartCache is an in-memory cart.Cache. Like the Redis cache it keeps
// the higher of the cached and offered versions.
type MockCartCache struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart

	GetErr      error
	SetErr      error
	DeleteErr   error
	SetCalls    []int
	DeleteCalls []string
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{carts: make(map[string]*cart.Cart)}
}

func (m *MockCartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCacheMiss
	}
	return c.Clone(), nil
}

func (m *MockCartCache) Set(ctx context.Context, userID string, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, c.Version)
	if m.SetErr != nil {
		return m.SetErr
	}
	if cached, ok := m.carts[userID]; ok && cached.Version > c.Version {
		return nil
	}
	m.carts[userID] = c.Clone()
	return nil
}

func (m *MockCartCache) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, userID)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.carts, userID)
	return nil
}

// Version returns the cached version for userID, or -1 when nothing is cached
func (m *MockCartCache) Version(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return -1
	}
	return c.Version
}

// Has reports whether userID is cached
func (m *MockCartCache) Has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[userID]
	return ok
}
