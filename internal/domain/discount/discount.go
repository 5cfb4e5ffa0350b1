package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion strategies.
type Type string

const (
	// TypePercentage applies a percentage of the subtotal, optionally capped.
	TypePercentage Type = "percentage"
	// TypeFixedAmount applies a flat amount, never exceeding the subtotal.
	TypeFixedAmount Type = "fixed_amount"
	// TypeBuyXGetY grants free or reduced units of a product once the
	// qualifying quantity threshold is met.
	TypeBuyXGetY Type = "buy_x_get_y"
)

// FreeKind is the per-unit reduction applied to BuyXGetY free units.
type FreeKind string

const (
	// FreeKindFree makes the free units cost nothing.
	FreeKindFree FreeKind = "free"
	// FreeKindPercentage reduces each free unit by a percentage of its price.
	FreeKindPercentage FreeKind = "percentage"
	// FreeKindFixedAmount reduces each free unit by a flat amount.
	FreeKindFixedAmount FreeKind = "fixed_amount"
)

var (
	// ErrNotFound is returned when no discount carries the requested code.
	ErrNotFound = errors.New("discount code not found")
	// ErrUsageLimitReached is returned when the usage counter cannot be
	// consumed because the limit is exhausted, including the case where a
	// concurrent order takes the last use.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
)

// Discount is a promotion rule. Empty applicability slices mean unrestricted.
// Zero MinOrderAmount means no threshold; zero MaxDiscount means uncapped;
// zero UsageLimit means unlimited.
type Discount struct {
	ID             string
	Code           string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.Decimal
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	UsageLimit     int
	UsedCount      int
	Active         bool

	ProductIDs    []string
	Categories    []string
	CustomerTiers []string
	EmployeeRoles []string

	// BuyXGetY parameters, meaningful only when Type is TypeBuyXGetY.
	BuyQuantity   int
	FreeProductID string
	FreeQuantity  int
	FreeKind      FreeKind
	FreeValue     decimal.Decimal
}

// Repository provides lookup and usage accounting for discounts.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// ConsumeUse increments the used counter, failing with
	// ErrUsageLimitReached when the limit is already exhausted. The check
	// and increment are one atomic statement so two concurrent orders
	// cannot both take the last use.
	ConsumeUse(ctx context.Context, id string) error
	// ReleaseUse decrements the used counter as compensation when an order
	// that consumed a use is cancelled before fulfillment.
	ReleaseUse(ctx context.Context, id string) error
}
