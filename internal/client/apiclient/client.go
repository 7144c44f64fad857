// Package apiclient is the storefront REST client used by the client-side
// cart and checkout packages.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
)

var (
	ErrUnauthorized = errors.New("session expired")
	ErrConflict     = errors.New("cart was changed elsewhere")
	// ErrRejected is a well-formed request the server refused, such as a
	// quantity beyond stock or an unusable coupon.
	ErrRejected = errors.New("request rejected")
)

// APIError is a non-2xx response. It unwraps to ErrUnauthorized for 401,
// ErrConflict for 409 and ErrRejected for 422.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrRejected
	default:
		return nil
	}
}

// TokenSource supplies the bearer token for a request. An empty token sends
// the request anonymously.
type TokenSource interface {
	Token() string
}

type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
	tokens  TokenSource
}

func New(baseURL string, httpClient *http.Client, tokens TokenSource) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{BaseURL: u, HTTP: httpClient, tokens: tokens}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.BaseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Cart

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
	Version   int    `json:"version,omitempty"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
	Version  int `json:"version,omitempty"`
}

func (c *Client) GetCart(ctx context.Context) (*cart.Cart, error) {
	var out cart.Cart
	if err := c.do(ctx, http.MethodGet, "cart", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddItem adds to the server cart. version 0 leaves the write unpinned.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int, variant string, version int) (*cart.Cart, error) {
	var out cart.Cart
	req := addItemRequest{ProductID: productID, Quantity: quantity, Variant: variant, Version: version}
	if err := c.do(ctx, http.MethodPost, "cart", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID string, quantity, version int) (*cart.Cart, error) {
	var out cart.Cart
	req := updateItemRequest{Quantity: quantity, Version: version}
	if err := c.do(ctx, http.MethodPut, "cart/"+url.PathEscape(itemID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID string, version int) (*cart.Cart, error) {
	var query url.Values
	if version > 0 {
		query = url.Values{"version": []string{strconv.Itoa(version)}}
	}
	var out cart.Cart
	if err := c.do(ctx, http.MethodDelete, "cart/"+url.PathEscape(itemID), query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearCart(ctx context.Context) (*cart.Cart, error) {
	var out cart.Cart
	if err := c.do(ctx, http.MethodDelete, "cart", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout

func (c *Client) Checkout(ctx context.Context, payload checkout.Payload) (*checkout.Confirmation, error) {
	var out checkout.Confirmation
	if err := c.do(ctx, http.MethodPost, "checkout", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Checkouts(ctx context.Context) ([]checkout.Checkout, error) {
	var out []checkout.Checkout
	if err := c.do(ctx, http.MethodGet, "checkout", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config and catalog

func (c *Client) ShippingMethods(ctx context.Context) ([]rates.ShippingMethod, error) {
	var out []rates.ShippingMethod
	if err := c.do(ctx, http.MethodGet, "config/shipping-methods", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Coupons(ctx context.Context) ([]rates.Coupon, error) {
	var out []rates.Coupon
	if err := c.do(ctx, http.MethodGet, "config/coupons", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Fees(ctx context.Context) (*rates.FeesAndRates, error) {
	var out rates.FeesAndRates
	if err := c.do(ctx, http.MethodGet, "config/fees", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TaxRates(ctx context.Context) ([]pricing.TaxRule, error) {
	var out []pricing.TaxRule
	if err := c.do(ctx, http.MethodGet, "config/tax-rates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (*product.Snapshot, error) {
	var out product.Snapshot
	if err := c.do(ctx, http.MethodGet, "products/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
