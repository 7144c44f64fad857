package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errUnauthenticated = errors.New("unauthorized")

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	carts     *cart.Service
	checkouts *checkout.Service
	rates     *rates.Service
	products  *product.Service
	logger    *zap.Logger
	checks    map[string]HealthCheck
}

func NewHandlers(
	carts *cart.Service,
	checkouts *checkout.Service,
	ratesSvc *rates.Service,
	products *product.Service,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		carts:     carts,
		checkouts: checkouts,
		rates:     ratesSvc,
		products:  products,
		logger:    logger,
		checks:    make(map[string]HealthCheck),
	}
}

// WithHealthCheck registers a dependency check for /healthz.
func (h *Handlers) WithHealthCheck(name string, check HealthCheck) *Handlers {
	h.checks[name] = check
	return h
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("[API] health check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	body := map[string]any{"status": "ok", "dependencies": results}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	respondJSON(w, status, body)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps err to a status code. Server-side failures are logged
// and reported without their detail.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error("[API] request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = http.StatusText(status)
	}
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &badRequestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

// getUserID returns the authenticated user. Routes that call it sit behind
// AuthMiddleware, so an empty id means the router was misconfigured.
func getUserID(r *http.Request) (string, error) {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return userID, nil
	}
	return "", errUnauthenticated
}
