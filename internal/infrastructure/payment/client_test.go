package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 2*time.Second, zap.NewNop())
	require.NoError(t, err)
	return client
}

func testRequest() checkout.PaymentRequest {
	return checkout.PaymentRequest{
		Reference: "chk-1",
		Amount:    decimal.RequireFromString("53.38"),
		Currency:  "USD",
		Method:    "card",
	}
}

func TestClient_Authorize_Success(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pay-1","status":"authorized"}`))
	})

	p, err := client.Authorize(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.ID)
	assert.Equal(t, StatusAuthorized, p.Status)
	assert.Equal(t, "chk-1", got["checkout_ref"])
	assert.Equal(t, "53.38", got["amount"])
}

func TestClient_Authorize_Declined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pay-2","status":"declined","reason":"insufficient funds"}`))
	})

	_, err := client.Authorize(context.Background(), testRequest())

	assert.ErrorIs(t, err, ErrDeclined)
}

func TestClient_Authorize_ClientErrorIsDeclined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "card expired", http.StatusPaymentRequired)
	})

	_, err := client.Authorize(context.Background(), testRequest())

	assert.ErrorIs(t, err, ErrDeclined)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusPaymentRequired, se.Code)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Authorize(ctx, testRequest())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := client.Authorize(ctx, testRequest())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_DeclinesDoNotOpenBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad card", http.StatusUnprocessableEntity)
	})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := client.Authorize(ctx, testRequest())
		assert.ErrorIs(t, err, ErrDeclined)
	}
}

func TestClient_Void(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Void(context.Background(), "pay-1"))
	assert.Equal(t, "/payments/pay-1/void", path)
}

func TestClient_Unreachable(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Authorize(context.Background(), testRequest())

	assert.ErrorIs(t, err, ErrUnavailable)
}
