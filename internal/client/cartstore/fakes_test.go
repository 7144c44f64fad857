package cartstore

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mug() product.Snapshot {
	return product.Snapshot{ID: "mug", Title: "Mug", Price: dec("12.50"), Stock: 5}
}

func tee() product.Snapshot {
	sale := dec("20")
	return product.Snapshot{ID: "tee", Title: "Tee", Price: dec("25"), SalePrice: &sale, Stock: 2}
}

// fakeCartAPI behaves like the server cart endpoints over one cart.Cart.
type fakeCartAPI struct {
	mu       sync.Mutex
	cart     *cart.Cart
	catalog  map[string]product.Snapshot
	failNext error
	getErr   error
	getCalls int
	pinned   []int
}

func newFakeCartAPI(products ...product.Snapshot) *fakeCartAPI {
	f := &fakeCartAPI{cart: cart.New("user-1", time.Now()), catalog: make(map[string]product.Snapshot)}
	for _, p := range products {
		f.catalog[p.ID] = p
	}
	return f
}

func (f *fakeCartAPI) mutate(version int, fn func(now time.Time) error) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, version)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	if version > 0 && version != f.cart.Version {
		return nil, &apiclient.APIError{Status: http.StatusConflict, Message: "cart was modified concurrently"}
	}
	if err := fn(time.Now()); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, cart.ErrInsufficientStock):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, cart.ErrItemNotFound):
			status = http.StatusNotFound
		}
		return nil, &apiclient.APIError{Status: status, Message: err.Error()}
	}
	return f.cart.Clone(), nil
}

// otherDevice changes the server cart without going through the client.
func (f *fakeCartAPI) otherDevice(p product.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.cart.Add(p, 1, "", time.Now())
}

func (f *fakeCartAPI) GetCart(ctx context.Context) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cart.Clone(), nil
}

func (f *fakeCartAPI) AddItem(ctx context.Context, productID string, quantity int, variant string, version int) (*cart.Cart, error) {
	p, ok := f.catalog[productID]
	if !ok {
		return nil, &apiclient.APIError{Status: http.StatusNotFound, Message: "product not found"}
	}
	return f.mutate(version, func(now time.Time) error {
		_, err := f.cart.Add(p, quantity, variant, now)
		return err
	})
}

func (f *fakeCartAPI) UpdateItem(ctx context.Context, itemID string, quantity, version int) (*cart.Cart, error) {
	return f.mutate(version, func(now time.Time) error {
		return f.cart.SetQuantity(itemID, quantity, now)
	})
}

func (f *fakeCartAPI) RemoveItem(ctx context.Context, itemID string, version int) (*cart.Cart, error) {
	return f.mutate(version, func(now time.Time) error {
		return f.cart.Remove(itemID, now)
	})
}

func (f *fakeCartAPI) ClearCart(ctx context.Context) (*cart.Cart, error) {
	return f.mutate(0, func(now time.Time) error {
		f.cart.Clear(now)
		return nil
	})
}

type note struct {
	Level   Level
	Message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{level, message})
}

func (n *recordingNotifier) errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.notes {
		if x.Level == LevelError {
			out = append(out, x.Message)
		}
	}
	return out
}

// failingStorage accepts reads and refuses writes.
type failingStorage struct{}

func (failingStorage) Get(key string) ([]byte, bool, error) { return nil, false, nil }
func (failingStorage) Set(key string, value []byte) error { return errors.New("disk full") }
func (failingStorage) Delete(key string) error { return errors.New("disk full") }

type fakeSubmitter struct {
	payloads []checkout.Payload
	err      error
}

func (f *fakeSubmitter) Checkout(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.Confirmation{Checkout: &checkout.Checkout{ID: "chk-1"}, Payment: checkout.Payment{ID: "pay-1", Status: "authorized"}}, nil
}
