package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/lib/pq"
)

var ErrDuplicateCheckout = errors.New("checkout already exists")

// CheckoutRepository implements checkout.Repository. There is no update or
// delete path: records are written once.
type CheckoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(db *sql.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// Create stores the record and its lines in one transaction.
func (r *CheckoutRepository) Create(ctx context.Context, c *checkout.Checkout) (err error) {
	address, err := json.Marshal(c.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkouts (id, user_id, shipping_address, shipping_method, payment_method, payment_id,
			coupon_code, currency, subtotal, discount, shipping, tax, payment_fee, total, resolved_location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.UserID, address, c.ShippingMethod, c.PaymentMethod, c.PaymentID,
		c.CouponCode, c.Currency, c.Subtotal, c.Discount, c.Shipping, c.Tax, c.PaymentFee, c.Total,
		c.ResolvedLocation, c.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert checkout: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checkout_lines (checkout_id, position, product_id, title, unit_price, quantity, variant)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare line insert: %w", err)
	}
	defer stmt.Close()

	for i, line := range c.Items {
		if _, err = stmt.ExecContext(ctx, c.ID, i, line.ProductID, line.Title, line.UnitPrice, line.Quantity, line.Variant); err != nil {
			return fmt.Errorf("insert checkout line %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}
	return nil
}

const selectCheckout = `
	SELECT id, user_id, shipping_address, shipping_method, payment_method, payment_id, coupon_code, currency,
		subtotal, discount, shipping, tax, payment_fee, total, resolved_location, created_at
	FROM checkouts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckout(row rowScanner) (*checkout.Checkout, error) {
	var c checkout.Checkout
	var address []byte
	err := row.Scan(
		&c.ID, &c.UserID, &address, &c.ShippingMethod, &c.PaymentMethod, &c.PaymentID, &c.CouponCode, &c.Currency,
		&c.Subtotal, &c.Discount, &c.Shipping, &c.Tax, &c.PaymentFee, &c.Total, &c.ResolvedLocation, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &c.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *CheckoutRepository) Get(ctx context.Context, id string) (*checkout.Checkout, error) {
	c, err := scanCheckout(r.db.QueryRowContext(ctx, selectCheckout+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout: %w", err)
	}

	lines, err := r.lines(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Items = lines[c.ID]
	return c, nil
}

// ListByUser returns a user's checkouts, newest first.
func (r *CheckoutRepository) ListByUser(ctx context.Context, userID string) ([]*checkout.Checkout, error) {
	rows, err := r.db.QueryContext(ctx, selectCheckout+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query checkouts: %w", err)
	}
	defer rows.Close()

	var out []*checkout.Checkout
	var ids []string
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout: %w", err)
		}
		out = append(out, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkouts: %w", err)
	}
	if len(ids) == 0 {
		return []*checkout.Checkout{}, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		c.Items = lines[c.ID]
	}
	return out, nil
}

func (r *CheckoutRepository) lines(ctx context.Context, ids []string) (map[string][]checkout.Line, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT checkout_id, product_id, title, unit_price, quantity, variant
		FROM checkout_lines WHERE checkout_id = ANY($1) ORDER BY checkout_id, position`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query checkout lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]checkout.Line, len(ids))
	for rows.Next() {
		var id string
		var line checkout.Line
		if err := rows.Scan(&id, &line.ProductID, &line.Title, &line.UnitPrice, &line.Quantity, &line.Variant); err != nil {
			return nil, fmt.Errorf("scan checkout line: %w", err)
		}
		out[id] = append(out[id], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout lines: %w", err)
	}
	return out, nil
}
