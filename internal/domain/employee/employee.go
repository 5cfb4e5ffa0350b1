package employee

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested employee does not exist.
var ErrNotFound = errors.New("employee not found")

// Employee is a staff member that may be attached to an order. Roles are a
// proper set of identifiers (waiter, chef, cashier, manager, ...) consulted
// by discount eligibility filters.
type Employee struct {
	ID     string
	Name   string
	Roles  []string
	Active bool
}

// HasRole reports whether the employee carries the given role.
func (e *Employee) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Repository defines read operations for employees.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Employee, error)
}
