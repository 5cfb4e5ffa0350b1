package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Tier is the loyalty tier used by discount applicability filters.
type Tier string

const (
	TierStandard Tier = "standard"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierVIP      Tier = "vip"
)

// Customer is the ordering party. Customer CRUD lives outside the engine.
type Customer struct {
	ID     string
	Name   string
	Tier   Tier
	Active bool
}

// Repository defines read operations for customers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
