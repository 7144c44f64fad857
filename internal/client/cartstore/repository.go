// Package cartstore keeps the shopper's cart on the client: in local storage
// for guests, on the server for signed-in shoppers.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/client/storage"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/product"
)

// GuestCartKey is the storage key holding the guest cart as a JSON array of
// items.
const GuestCartKey = "guest_cart"

// CartRepository is one cart backend. Every method returns the item list the
// caller should show afterwards; a nil list with an error means nothing
// changed.
type CartRepository interface {
	Load(ctx context.Context) ([]cart.Item, error)
	Add(ctx context.Context, p product.Snapshot, quantity int, variant string) ([]cart.Item, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]cart.Item, error)
	Remove(ctx context.Context, itemID string) ([]cart.Item, error)
	Clear(ctx context.Context) ([]cart.Item, error)
}

// Authenticator is the client's view of the identity collaborator.
type Authenticator interface {
	IsAuthenticated() bool
	CurrentUser() string
}

// RemoteCartAPI is the server cart API. apiclient.Client implements it.
type RemoteCartAPI interface {
	GetCart(ctx context.Context) (*cart.Cart, error)
	AddItem(ctx context.Context, productID string, quantity int, variant string, version int) (*cart.Cart, error)
	UpdateItem(ctx context.Context, itemID string, quantity, version int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, itemID string, version int) (*cart.Cart, error)
	ClearCart(ctx context.Context) (*cart.Cart, error)
}

// Session is what a client session starts with.
type Session struct {
	Auth    Authenticator
	API     RemoteCartAPI
	Storage storage.Storage
}

// NewRepository picks the backend once for the session.
func NewRepository(s Session) CartRepository {
	if s.Auth != nil && s.Auth.IsAuthenticated() {
		return NewRemoteCartRepository(s.API)
	}
	return NewLocalCartRepository(s.Storage)
}

// ============================================
// Guest carts
// ============================================

// LocalCartRepository keeps the guest cart in memory and mirrors it to
// storage after every change.
type LocalCartRepository struct {
	mu    sync.Mutex
	store storage.Storage
	cart  *cart.Cart
	now   func() time.Time
}

// NewLocalCartRepository hydrates from GuestCartKey. A missing or unreadable
// value yields an empty cart.
func NewLocalCartRepository(store storage.Storage) *LocalCartRepository {
	r := &LocalCartRepository{store: store, now: time.Now}
	r.cart = cart.New("", r.now())
	r.cart.Items = readGuestCart(store)
	return r
}

func readGuestCart(store storage.Storage) []cart.Item {
	raw, ok, err := store.Get(GuestCartKey)
	if err != nil || !ok {
		return []cart.Item{}
	}
	var items []cart.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return []cart.Item{}
	}
	valid := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if item.ID == "" || item.Product.ID == "" || item.Quantity <= 0 {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

func (r *LocalCartRepository) persist() error {
	raw, err := json.Marshal(r.cart.Items)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	if err := r.store.Set(GuestCartKey, raw); err != nil {
		return fmt.Errorf("save guest cart: %w", err)
	}
	return nil
}

// snapshot returns the current items and the persist error, if any. Guest
// changes stay applied in memory even when storage fails.
func (r *LocalCartRepository) snapshot(persistErr error) ([]cart.Item, error) {
	return r.cart.Clone().Items, persistErr
}

func (r *LocalCartRepository) Load(ctx context.Context) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(nil)
}

func (r *LocalCartRepository) Add(ctx context.Context, p product.Snapshot, quantity int, variant string) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.cart.Add(p, quantity, variant, r.now()); err != nil {
		return nil, err
	}
	return r.snapshot(r.persist())
}

func (r *LocalCartRepository) UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cart.SetQuantity(itemID, quantity, r.now()); err != nil {
		return nil, err
	}
	return r.snapshot(r.persist())
}

func (r *LocalCartRepository) Remove(ctx context.Context, itemID string) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cart.Remove(itemID, r.now()); err != nil {
		return nil, err
	}
	return r.snapshot(r.persist())
}

// Clear empties the cart and drops the storage key.
func (r *LocalCartRepository) Clear(ctx context.Context) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart.Clear(r.now())
	if err := r.store.Delete(GuestCartKey); err != nil {
		return r.snapshot(fmt.Errorf("delete guest cart: %w", err))
	}
	return r.snapshot(nil)
}

// ============================================
// Server carts
// ============================================

// RemoteCartRepository writes through the server API and then refetches the
// canonical cart. Writes are pinned to the last version it saw, so a stale
// write fails with apiclient.ErrConflict instead of overwriting.
type RemoteCartRepository struct {
	mu      sync.Mutex
	api     RemoteCartAPI
	version int
}

func NewRemoteCartRepository(api RemoteCartAPI) *RemoteCartRepository {
	return &RemoteCartRepository{api: api}
}

// Version is the last server cart version seen.
func (r *RemoteCartRepository) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

func (r *RemoteCartRepository) Load(ctx context.Context) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refetch(ctx)
}

func (r *RemoteCartRepository) refetch(ctx context.Context) ([]cart.Item, error) {
	c, err := r.api.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	r.version = c.Version
	return normalizeItems(c.Items), nil
}

// afterWrite refetches on success. A conflict also refetches so the caller
// can show what the server has now.
func (r *RemoteCartRepository) afterWrite(ctx context.Context, writeErr error) ([]cart.Item, error) {
	if writeErr != nil {
		if !errors.Is(writeErr, apiclient.ErrConflict) {
			return nil, writeErr
		}
		items, err := r.refetch(ctx)
		if err != nil {
			return nil, writeErr
		}
		return items, writeErr
	}
	return r.refetch(ctx)
}

func (r *RemoteCartRepository) Add(ctx context.Context, p product.Snapshot, quantity int, variant string) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.api.AddItem(ctx, p.ID, quantity, variant, r.version)
	return r.afterWrite(ctx, err)
}

func (r *RemoteCartRepository) UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.api.UpdateItem(ctx, itemID, quantity, r.version)
	return r.afterWrite(ctx, err)
}

func (r *RemoteCartRepository) Remove(ctx context.Context, itemID string) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.api.RemoveItem(ctx, itemID, r.version)
	return r.afterWrite(ctx, err)
}

// Clear empties the server cart. The cleared cart is known to be empty, so
// there is no refetch.
func (r *RemoteCartRepository) Clear(ctx context.Context) ([]cart.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.api.ClearCart(ctx)
	if err != nil {
		return nil, err
	}
	r.version = c.Version
	return []cart.Item{}, nil
}

// normalizeItems gives every line a stable string id.
func normalizeItems(items []cart.Item) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			variant := item.SelectedVariant
			if variant == "" {
				variant = "default"
			}
			item.ID = item.Product.ID + "-" + variant
		}
		out = append(out, item)
	}
	return out
}
