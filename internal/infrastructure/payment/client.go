// Package payment is the HTTP client for the external payment collaborator.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const StatusAuthorized = "authorized"

var (
	ErrDeclined    = errors.New("payment declined")
	ErrUnavailable = errors.New("payment service unavailable")
)

// StatusError is a non-2xx answer from the payment service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payment service returned %d: %s", e.Code, e.Message)
}

// clientError reports whether err is the caller's fault rather than the
// service's. Those do not count against the breaker.
func clientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid payment url %q: %w", baseURL, err)
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[Payment] circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

type authorizeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Authorize places a hold for req.Amount. Anything but an authorized
// status is returned as ErrDeclined.
func (c *Client) Authorize(ctx context.Context, req checkout.PaymentRequest) (*checkout.Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	raw, err := c.call(ctx, http.MethodPost, "payments", body)
	if err != nil {
		if clientError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDeclined, err)
		}
		return nil, err
	}

	var resp authorizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	if resp.Status != StatusAuthorized {
		return nil, fmt.Errorf("%w: status %q %s", ErrDeclined, resp.Status, resp.Reason)
	}
	return &checkout.Payment{ID: resp.ID, Status: resp.Status}, nil
}

// Void releases an authorization.
func (c *Client) Void(ctx context.Context, paymentID string) error {
	_, err := c.call(ctx, http.MethodPost, "payments/"+url.PathEscape(paymentID)+"/void", nil)
	return err
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read payment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
