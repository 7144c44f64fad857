package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CartRepository stores one document per user cart. Writes are conditional
// on the version the caller loaded.
type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartsCollection)}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDoc
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	c, err := doc.toCart()
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return c, nil
}

// Save writes c when the stored version equals expectedVersion. Version 0
// means the cart has never been stored.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart, expectedVersion int) error {
	doc, err := fromCart(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	if expectedVersion == 0 {
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return cart.ErrVersionConflict
			}
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		return nil
	}

	filter := bson.M{"user_id": c.UserID, "version": expectedVersion}
	result, err := r.collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return cart.ErrVersionConflict
	}
	return nil
}

// Delete removes the stored cart. Missing carts are not an error.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
