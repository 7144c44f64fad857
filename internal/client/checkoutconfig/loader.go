// Package checkoutconfig hydrates the tables a client needs to price a
// checkout: shipping methods, coupons, payment fees and tax brackets.
package checkoutconfig

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/rates"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resource names one independently loaded table.
type Resource string

const (
	Coupons         Resource = "coupons"
	Fees            Resource = "fees"
	TaxRates        Resource = "tax_rates"
	ShippingMethods Resource = "shipping_methods"
)

var protected = []Resource{Coupons, Fees, TaxRates}

// Source is the config API. apiclient.Client implements it.
type Source interface {
	ShippingMethods(ctx context.Context) ([]rates.ShippingMethod, error)
	Coupons(ctx context.Context) ([]rates.Coupon, error)
	Fees(ctx context.Context) (*rates.FeesAndRates, error)
	TaxRates(ctx context.Context) ([]pricing.TaxRule, error)
}

// State is a point-in-time copy of what has been loaded.
type State struct {
	ShippingMethods []rates.ShippingMethod
	Coupons         []rates.Coupon
	Fees            *rates.FeesAndRates
	TaxTable        pricing.TaxTable
	Loading         map[Resource]bool
	Errors          map[Resource]error
}

// Ready reports whether nothing is still loading.
func (s State) Ready() bool {
	for _, loading := range s.Loading {
		if loading {
			return false
		}
	}
	return true
}

// Coupon finds a loaded coupon by code.
func (s State) Coupon(code string) (rates.Coupon, bool) {
	code = rates.NormalizeCode(code)
	for _, c := range s.Coupons {
		if rates.NormalizeCode(c.Code) == code {
			return c, true
		}
	}
	return rates.Coupon{}, false
}

// ShippingMethod finds a loaded shipping method by id.
func (s State) ShippingMethod(id string) (rates.ShippingMethod, bool) {
	for _, m := range s.ShippingMethods {
		if m.ID == id {
			return m, true
		}
	}
	return rates.ShippingMethod{}, false
}

// Loader keeps the checkout tables in step with the shopper's sign-in state.
// Shipping methods are public; the other three are only fetched while
// authenticated. A failed table is left empty and flagged in State.Errors,
// it never fails the others.
type Loader struct {
	source Source
	logger *zap.Logger

	mu            sync.RWMutex
	authenticated bool
	generation    uint64
	state         State
}

func NewLoader(source Source, logger *zap.Logger) *Loader {
	return &Loader{
		source: source,
		logger: logger,
		state: State{
			ShippingMethods: []rates.ShippingMethod{},
			Coupons:         []rates.Coupon{},
			Loading:         make(map[Resource]bool),
			Errors:          make(map[Resource]error),
		},
	}
}

// State returns a copy of the current tables.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.state
	s.ShippingMethods = append([]rates.ShippingMethod{}, l.state.ShippingMethods...)
	s.Coupons = append([]rates.Coupon{}, l.state.Coupons...)
	if l.state.Fees != nil {
		fees := *l.state.Fees
		s.Fees = &fees
	}
	s.Loading = make(map[Resource]bool, len(l.state.Loading))
	for k, v := range l.state.Loading {
		s.Loading[k] = v
	}
	s.Errors = make(map[Resource]error, len(l.state.Errors))
	for k, v := range l.state.Errors {
		s.Errors[k] = v
	}
	return s
}

// Load fetches every table visible in the current sign-in state and blocks
// until all of them have settled.
func (l *Loader) Load(ctx context.Context) {
	l.mu.Lock()
	authenticated := l.authenticated
	l.generation++
	gen := l.generation
	l.mu.Unlock()
	l.load(ctx, gen, authenticated)
}

// SetAuthenticated records a sign-in transition and refetches. On sign-out
// the protected tables are cleared before this returns.
func (l *Loader) SetAuthenticated(ctx context.Context, authenticated bool) {
	l.mu.Lock()
	if l.authenticated == authenticated {
		l.mu.Unlock()
		return
	}
	l.authenticated = authenticated
	l.generation++
	gen := l.generation
	if !authenticated {
		l.clearProtected()
	}
	l.mu.Unlock()

	l.load(ctx, gen, authenticated)
}

func (l *Loader) clearProtected() {
	l.state.Coupons = []rates.Coupon{}
	l.state.Fees = nil
	l.state.TaxTable = pricing.TaxTable{}
	for _, r := range protected {
		delete(l.state.Loading, r)
		delete(l.state.Errors, r)
	}
}

func (l *Loader) load(ctx context.Context, gen uint64, authenticated bool) {
	resources := []Resource{ShippingMethods}
	if authenticated {
		resources = append(resources, protected...)
	}

	l.mu.Lock()
	for _, r := range resources {
		l.state.Loading[r] = true
	}
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range resources {
		g.Go(func() error {
			fetch := l.fetcher(r)
			apply, err := fetch(gctx)
			l.settle(gen, r, apply, err)
			// each table degrades on its own
			return nil
		})
	}
	_ = g.Wait()
}

// fetcher returns a function that loads r and yields a setter to apply the
// result under the lock.
func (l *Loader) fetcher(r Resource) func(ctx context.Context) (func(*State), error) {
	switch r {
	case ShippingMethods:
		return func(ctx context.Context) (func(*State), error) {
			methods, err := l.source.ShippingMethods(ctx)
			if err != nil {
				return nil, err
			}
			if methods == nil {
				methods = []rates.ShippingMethod{}
			}
			return func(s *State) { s.ShippingMethods = methods }, nil
		}
	case Coupons:
		return func(ctx context.Context) (func(*State), error) {
			coupons, err := l.source.Coupons(ctx)
			if err != nil {
				return nil, err
			}
			if coupons == nil {
				coupons = []rates.Coupon{}
			}
			return func(s *State) { s.Coupons = coupons }, nil
		}
	case Fees:
		return func(ctx context.Context) (func(*State), error) {
			fees, err := l.source.Fees(ctx)
			if err != nil {
				return nil, err
			}
			return func(s *State) { s.Fees = fees }, nil
		}
	default:
		return func(ctx context.Context) (func(*State), error) {
			rules, err := l.source.TaxRates(ctx)
			if err != nil {
				return nil, err
			}
			table, err := pricing.NewTaxTable(rules)
			if err != nil {
				return nil, err
			}
			return func(s *State) { s.TaxTable = table }, nil
		}
	}
}

// settle applies one result unless a later sign-in transition superseded it.
func (l *Loader) settle(gen uint64, r Resource, apply func(*State), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		return
	}
	l.state.Loading[r] = false
	if err != nil {
		l.logger.Warn("[Config] load failed", zap.String("resource", string(r)), zap.Error(err))
		l.state.Errors[r] = err
		l.resetOne(r)
		return
	}
	delete(l.state.Errors, r)
	apply(&l.state)
}

func (l *Loader) resetOne(r Resource) {
	switch r {
	case ShippingMethods:
		l.state.ShippingMethods = []rates.ShippingMethod{}
	case Coupons:
		l.state.Coupons = []rates.Coupon{}
	case Fees:
		l.state.Fees = nil
	case TaxRates:
		l.state.TaxTable = pricing.TaxTable{}
	}
}
