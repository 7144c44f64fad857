// Package checkoutflow drives one checkout attempt on the client, from
// loading the rate tables to the server's confirmation.
package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/storefront/internal/client/checkoutconfig"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle          State = "idle"
	StateConfiguring   State = "configuring"
	StateReadyToSubmit State = "ready_to_submit"
	StateSubmitting    State = "submitting"
	StateConfirmed     State = "confirmed"
	StateFailed        State = "failed"
)

var ErrInvalidTransition = errors.New("invalid checkout state transition")

// validTransitions defines allowed state transitions
var validTransitions = map[State][]State{
	StateIdle:          {StateConfiguring},
	StateConfiguring:   {StateReadyToSubmit},
	StateReadyToSubmit: {StateSubmitting, StateConfiguring},
	StateSubmitting:    {StateConfirmed, StateFailed},
	StateFailed:        {StateReadyToSubmit},
	StateConfirmed:     {}, // terminal state
}

// Config is the rate tables the flow prices against.
type Config interface {
	Load(ctx context.Context)
	State() checkoutconfig.State
}

// Submitter is the remote checkout API.
type Submitter interface {
	Checkout(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error)
}

// Flow is a single checkout attempt. It never retries on its own; a failed
// submission waits for Retry.
type Flow struct {
	mu           sync.Mutex
	config       Config
	submitter    Submitter
	logger       *zap.Logger
	now          func() time.Time
	state        State
	err          error
	confirmation *checkout.Confirmation
}

func New(config Config, submitter Submitter, logger *zap.Logger) *Flow {
	return &Flow{
		config:    config,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
		state:     StateIdle,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the error of the last failed submission.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) Confirmation() *checkout.Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmation
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition must be called with f.mu held.
func (f *Flow) transition(to State) error {
	if !canTransition(f.state, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, f.state, to)
	}
	f.logger.Debug("[Checkout] state change", zap.String("from", string(f.state)), zap.String("to", string(to)))
	f.state = to
	return nil
}

// Configure loads the rate tables. Load failures do not block the flow; the
// affected tables are simply empty.
func (f *Flow) Configure(ctx context.Context) error {
	f.mu.Lock()
	if err := f.transition(StateConfiguring); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	f.config.Load(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	for r, err := range f.config.State().Errors {
		f.logger.Warn("[Checkout] continuing without table", zap.String("resource", string(r)), zap.Error(err))
	}
	return f.transition(StateReadyToSubmit)
}

// Quote is the client's advisory price for items with the chosen shipping
// method and coupon. The server recomputes every figure on submission.
func (f *Flow) Quote(items []cart.Item, shippingMethod, couponCode string) (pricing.Breakdown, error) {
	state := f.config.State()

	method, ok := state.ShippingMethod(shippingMethod)
	if !ok {
		return pricing.Breakdown{}, fmt.Errorf("%w: %s", rates.ErrShippingMethodNotFound, shippingMethod)
	}

	lines := cart.Lines(items)
	discount := decimal.Zero
	if couponCode != "" {
		coupon, ok := state.Coupon(couponCode)
		if !ok {
			return pricing.Breakdown{}, fmt.Errorf("%w: %s", rates.ErrCouponNotFound, rates.NormalizeCode(couponCode))
		}
		d, err := coupon.Discount(pricing.Subtotal(lines), f.now())
		if err != nil {
			return pricing.Breakdown{}, err
		}
		discount = d
	}

	var fees pricing.Fees
	if state.Fees != nil {
		fees = state.Fees.Fees()
	}
	return pricing.Finalize(pricing.Inputs{
		Lines:    lines,
		Taxes:    state.TaxTable,
		Discount: discount,
		Shipping: method.Cost,
		Fees:     fees,
	}), nil
}

// Submit sends payload. A payload that fails local validation is returned
// without leaving ReadyToSubmit; a server failure moves the flow to Failed.
func (f *Flow) Submit(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error) {
	f.mu.Lock()
	if f.state != StateReadyToSubmit {
		err := fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, f.state)
		f.mu.Unlock()
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	_ = f.transition(StateSubmitting)
	f.err = nil
	f.mu.Unlock()

	conf, err := f.submitter.Checkout(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("[Checkout] submission failed", zap.Error(err))
		f.err = err
		_ = f.transition(StateFailed)
		return nil, err
	}
	f.confirmation = conf
	_ = f.transition(StateConfirmed)
	if conf.Checkout != nil {
		f.logger.Info("[Checkout] confirmed", zap.String("checkout_id", conf.Checkout.ID))
	}
	return conf, nil
}

// Retry returns a failed flow to ReadyToSubmit.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(StateReadyToSubmit)
}
