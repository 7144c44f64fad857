package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/events"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// maxMutationAttempts bounds the reload-and-retry loop on version
	// conflicts for callers that did not pin a version.
	maxMutationAttempts = 3
	loadTimeout         = 5 * time.Second
)

var ErrCacheMiss = errors.New("cache miss")

// Repository persists carts. Save must fail with ErrVersionConflict when the
// stored version differs from expectedVersion.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart, expectedVersion int) error
}

// Cache is a read-through cache in front of Repository. Set must not replace
// a cached cart that has a higher Version.
type Cache interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Set(ctx context.Context, userID string, cart *Cart) error
	Delete(ctx context.Context, userID string) error
}

type Service struct {
	repo      Repository
	catalog   product.Repository
	cache     Cache
	publisher events.Publisher
	logger    *zap.Logger
	sfg       singleflight.Group
	now       func() time.Time
}

func NewService(repo Repository, catalog product.Repository, cache Cache, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the user's cart, or an empty one if none is stored. Callers
// asking for the same cart share one load; each caller can still give up on
// its own ctx.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	ch := s.sfg.DoChan(userID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.readThrough(loadCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Cart).Clone(), nil
	}
}

func (s *Service) readThrough(ctx context.Context, userID string) (*Cart, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("[Cart] cache get failed", zap.String("user_id", userID), zap.Error(err))
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Set keeps a newer cached version, so a load that raced a write
	// cannot put the older cart back.
	if err := s.cache.Set(ctx, userID, c); err != nil {
		s.logger.Warn("[Cart] cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return New(userID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// AddItem adds quantity of productID to the user's cart using the catalog's
// current price and stock. expectedVersion 0 means "any version".
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, variant string, expectedVersion int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, expectedVersion, EventItemAdded, func(c *Cart, now time.Time) (any, error) {
		item, err := c.Add(*p, quantity, variant, now)
		if err != nil {
			return nil, err
		}
		return ItemAddedToCart{
			CartID:    c.ID,
			UserID:    userID,
			ItemID:    item.ID,
			ProductID: p.ID,
			Variant:   variant,
			Quantity:  quantity,
			UnitPrice: p.UnitPrice(),
			AddedAt:   now,
		}, nil
	})
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int, expectedVersion int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, itemID, expectedVersion)
	}

	return s.mutate(ctx, userID, expectedVersion, EventQuantityUpdated, func(c *Cart, now time.Time) (any, error) {
		if item, ok := c.Find(itemID); ok && quantity > item.Quantity {
			// refresh stock from the catalog before allowing an increase
			if p, err := s.catalog.Get(ctx, item.Product.ID); err == nil {
				c.Items[c.indexOf(itemID)].Product = *p
			}
		}
		if err := c.SetQuantity(itemID, quantity, now); err != nil {
			return nil, err
		}
		return CartItemQuantityUpdated{
			CartID:    c.ID,
			UserID:    userID,
			ItemID:    itemID,
			Quantity:  quantity,
			UpdatedAt: now,
		}, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string, expectedVersion int) (*Cart, error) {
	return s.mutate(ctx, userID, expectedVersion, EventItemRemoved, func(c *Cart, now time.Time) (any, error) {
		if err := c.Remove(itemID, now); err != nil {
			return nil, err
		}
		return ItemRemovedFromCart{
			CartID:    c.ID,
			UserID:    userID,
			ItemID:    itemID,
			RemovedAt: now,
		}, nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	return s.mutate(ctx, userID, 0, EventCartCleared, func(c *Cart, now time.Time) (any, error) {
		c.Clear(now)
		return CartCleared{
			CartID:    c.ID,
			UserID:    userID,
			ClearedAt: now,
		}, nil
	})
}

// mutate loads the stored cart, applies fn and saves it conditionally on the
// loaded version. Conflicts are retried only when the caller did not pin a
// version.
func (s *Service) mutate(ctx context.Context, userID string, expectedVersion int, eventType string, fn func(c *Cart, now time.Time) (any, error)) (*Cart, error) {
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		c, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if expectedVersion > 0 && c.Version != expectedVersion {
			return nil, fmt.Errorf("%w: have version %d, client sent %d", ErrVersionConflict, c.Version, expectedVersion)
		}

		loaded := c.Version
		payload, err := fn(c, s.now())
		if err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, c, loaded)
		if errors.Is(err, ErrVersionConflict) && expectedVersion == 0 {
			s.logger.Debug("[Cart] version conflict, retrying", zap.String("user_id", userID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}

		s.storeCached(userID, c)
		s.publish(ctx, c, eventType, payload)
		return c, nil
	}
	return nil, ErrVersionConflict
}

// storeCached writes the saved cart through to the cache. If that fails the
// entry is dropped instead so the next read goes to the repository.
func (s *Service) storeCached(userID string, c *Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Set(ctx, userID, c)
	if err == nil {
		return
	}
	s.logger.Warn("[Cart] cache write-through failed", zap.String("user_id", userID), zap.Error(err))
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("[Cart] cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, c *Cart, eventType string, payload any) {
	event, err := events.New(c.ID, AggregateType, eventType, c.Version, payload)
	if err != nil {
		s.logger.Warn("[Cart] failed to build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, c.ID, event); err != nil {
		s.logger.Warn("[Cart] failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}
