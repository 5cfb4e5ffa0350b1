// Package auth carries the authorization input handed to the engine by the
// (external) authentication layer: a principal with a role and an optional
// linked employee.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no API key matches the presented credential.
var ErrNotFound = errors.New("api key not found")

// Role is the access role of an authenticated principal.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleCashier        Role = "cashier"
	RoleWarehouseStaff Role = "warehouse_staff"
)

// Principal identifies the authenticated caller of an operation.
type Principal struct {
	KeyID      string
	Role       Role
	EmployeeID string
}

// CanOperate reports whether the principal may invoke the mutating
// operations: create/transition orders, merge/dissolve table groups.
func (p Principal) CanOperate() bool {
	return p.Role == RoleAdmin || p.Role == RoleCashier
}

// APIKey holds the stored credential a principal authenticates with.
type APIKey struct {
	ID         string
	KeyHash    string
	Name       string
	Role       Role
	EmployeeID string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal set by the security handler.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
