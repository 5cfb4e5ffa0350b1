package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a menu item. The catalog is maintained elsewhere; the
// order engine reads it for validation, price snapshots, and discount
// applicability.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	Active   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
