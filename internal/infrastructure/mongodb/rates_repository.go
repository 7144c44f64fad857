package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/rates"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RatesRepository reads the checkout configuration collections.
type RatesRepository struct {
	shipping *mongo.Collection
	coupons  *mongo.Collection
	fees     *mongo.Collection
	taxRates *mongo.Collection
}

func NewRatesRepository(db *mongo.Database) *RatesRepository {
	return &RatesRepository{
		shipping: db.Collection(shippingMethodsCollection),
		coupons:  db.Collection(couponsCollection),
		fees:     db.Collection(feesCollection),
		taxRates: db.Collection(taxRatesCollection),
	}
}

func (r *RatesRepository) ListShippingMethods(ctx context.Context) ([]rates.ShippingMethod, error) {
	cursor, err := r.shipping.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "cost", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list shipping methods: %w", err)
	}
	var docs []shippingMethodDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode shipping methods: %w", err)
	}

	methods := make([]rates.ShippingMethod, 0, len(docs))
	for _, d := range docs {
		m, err := d.toShippingMethod()
		if err != nil {
			return nil, fmt.Errorf("failed to decode shipping method %s: %w", d.ID, err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func (r *RatesRepository) GetShippingMethod(ctx context.Context, id string) (*rates.ShippingMethod, error) {
	var doc shippingMethodDoc
	if err := r.shipping.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rates.ErrShippingMethodNotFound
		}
		return nil, fmt.Errorf("failed to get shipping method: %w", err)
	}
	m, err := doc.toShippingMethod()
	if err != nil {
		return nil, fmt.Errorf("failed to decode shipping method %s: %w", doc.ID, err)
	}
	return &m, nil
}

func (r *RatesRepository) ListCoupons(ctx context.Context) ([]rates.Coupon, error) {
	cursor, err := r.coupons.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	var docs []couponDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode coupons: %w", err)
	}

	coupons := make([]rates.Coupon, 0, len(docs))
	for _, d := range docs {
		c, err := d.toCoupon()
		if err != nil {
			return nil, fmt.Errorf("failed to decode coupon %s: %w", d.Code, err)
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}

// GetCoupon looks up an already normalized code.
func (r *RatesRepository) GetCoupon(ctx context.Context, code string) (*rates.Coupon, error) {
	var doc couponDoc
	if err := r.coupons.FindOne(ctx, bson.M{"code": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rates.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	c, err := doc.toCoupon()
	if err != nil {
		return nil, fmt.Errorf("failed to decode coupon %s: %w", doc.Code, err)
	}
	return &c, nil
}

func (r *RatesRepository) GetFees(ctx context.Context) (*rates.FeesAndRates, error) {
	var doc feesDoc
	if err := r.fees.FindOne(ctx, bson.M{"_id": feesDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fees: %w", err)
	}
	f, err := doc.toFees()
	if err != nil {
		return nil, fmt.Errorf("failed to decode fees: %w", err)
	}
	return &f, nil
}

func (r *RatesRepository) ListTaxRules(ctx context.Context) ([]pricing.TaxRule, error) {
	cursor, err := r.taxRates.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "min", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rates: %w", err)
	}
	var docs []taxRuleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tax rates: %w", err)
	}

	rules := make([]pricing.TaxRule, 0, len(docs))
	for _, d := range docs {
		rule, err := d.toTaxRule()
		if err != nil {
			return nil, fmt.Errorf("failed to decode tax rate: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *RatesRepository) PutShippingMethod(ctx context.Context, m rates.ShippingMethod) error {
	doc, err := fromShippingMethod(m)
	if err != nil {
		return fmt.Errorf("failed to encode shipping method: %w", err)
	}
	_, err = r.shipping.ReplaceOne(ctx, bson.M{"_id": m.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put shipping method: %w", err)
	}
	return nil
}

func (r *RatesRepository) PutCoupon(ctx context.Context, c rates.Coupon) error {
	doc, err := fromCoupon(c)
	if err != nil {
		return fmt.Errorf("failed to encode coupon: %w", err)
	}
	_, err = r.coupons.ReplaceOne(ctx, bson.M{"code": doc.Code}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put coupon: %w", err)
	}
	return nil
}

func (r *RatesRepository) PutFees(ctx context.Context, f rates.FeesAndRates) error {
	doc, err := fromFees(f)
	if err != nil {
		return fmt.Errorf("failed to encode fees: %w", err)
	}
	_, err = r.fees.ReplaceOne(ctx, bson.M{"_id": feesDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put fees: %w", err)
	}
	return nil
}

// ReplaceTaxRules swaps the whole bracket table. The table is validated
// before anything is written.
func (r *RatesRepository) ReplaceTaxRules(ctx context.Context, rules []pricing.TaxRule) error {
	if _, err := pricing.NewTaxTable(rules); err != nil {
		return err
	}
	if _, err := r.taxRates.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear tax rates: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(rules))
	for _, rule := range rules {
		doc, err := fromTaxRule(rule)
		if err != nil {
			return fmt.Errorf("failed to encode tax rate: %w", err)
		}
		docs = append(docs, doc)
	}
	if _, err := r.taxRates.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert tax rates: %w", err)
	}
	return nil
}
