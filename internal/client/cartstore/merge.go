package cartstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/domain/cart"
)

// MergeResult reports which guest lines reached the server cart.
type MergeResult struct {
	Merged   []cart.Item
	Rejected []cart.Item
}

// MergeGuestCart moves every guest line into the signed-in shopper's cart on
// login. Lines the server refuses are reported through notifier. The guest
// cart is cleared once every line has been tried; an expired session aborts
// the merge and leaves it intact.
func MergeGuestCart(ctx context.Context, guest, remote CartRepository, notifier Notifier) (*MergeResult, error) {
	items, err := guest.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	result := &MergeResult{}
	if len(items) == 0 {
		return result, nil
	}

	for _, item := range items {
		_, err := remote.Add(ctx, item.Product, item.Quantity, item.SelectedVariant)
		if errors.Is(err, apiclient.ErrConflict) {
			// remote has refetched its version; one more try
			_, err = remote.Add(ctx, item.Product, item.Quantity, item.SelectedVariant)
		}
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return result, err
		}
		if err != nil {
			result.Rejected = append(result.Rejected, item)
			if notifier != nil {
				notifier.Notify(LevelError, fmt.Sprintf("Could not move %s to your cart: %s", item.Product.Title, reason(err)))
			}
			continue
		}
		result.Merged = append(result.Merged, item)
	}

	if _, err := guest.Clear(ctx); err != nil {
		return result, fmt.Errorf("clear guest cart: %w", err)
	}
	if notifier != nil && len(result.Merged) > 0 {
		notifier.Notify(LevelSuccess, fmt.Sprintf("Moved %d item(s) to your cart", len(result.Merged)))
	}
	return result, nil
}

func reason(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
