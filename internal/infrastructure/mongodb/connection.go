// Package mongodb stores carts, the product catalog and the checkout
// configuration tables in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cartsCollection           = "carts"
	productsCollection        = "products"
	shippingMethodsCollection = "shipping_methods"
	couponsCollection         = "coupons"
	feesCollection            = "fees_and_rates"
	taxRatesCollection        = "tax_rates"
)

// abandoned carts expire after 90 days without a write
const cartTTL = 90 * 24 * time.Hour

func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the indexes every repository relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	carts := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}
	if _, err := db.Collection(cartsCollection).Indexes().CreateMany(ctx, carts); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	coupons := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := db.Collection(couponsCollection).Indexes().CreateOne(ctx, coupons); err != nil {
		return fmt.Errorf("failed to create coupon indexes: %w", err)
	}

	taxRates := mongo.IndexModel{Keys: bson.D{{Key: "min", Value: 1}}}
	if _, err := db.Collection(taxRatesCollection).Indexes().CreateOne(ctx, taxRates); err != nil {
		return fmt.Errorf("failed to create tax rate indexes: %w", err)
	}
	return nil
}
