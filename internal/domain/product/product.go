package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("product_id is required")
)

// Snapshot is the catalog view of a product a cart line carries with it.
type Snapshot struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Stock     int              `json:"stock"`
}

// UnitPrice is the sale price when one is set, the list price otherwise.
func (s Snapshot) UnitPrice() decimal.Decimal {
	if s.SalePrice != nil {
		return *s.SalePrice
	}
	return s.Price
}

// Repository is the read side of the product catalog.
type Repository interface {
	Get(ctx context.Context, id string) (*Snapshot, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the current catalog snapshot for id.
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, ErrInvalidProduct
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}
