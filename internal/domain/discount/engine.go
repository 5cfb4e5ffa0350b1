package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
)

var hundred = decimal.NewFromInt(100)

// Item is an order line as seen by the discount engine: immutable unit-price
// snapshot plus the catalog category it belonged to at order time.
type Item struct {
	ProductID string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// OrderContext is everything about the order the eligibility filters and the
// computation need. Subtotal is derived from Items by the caller so both
// sides agree on the same snapshot prices.
type OrderContext struct {
	Subtotal      decimal.Decimal
	Items         []Item
	CustomerTier  string
	EmployeeRoles []string
}

// FreeItem reports BuyXGetY free units granted on an order.
type FreeItem struct {
	ProductID string
	Quantity  int
}

// Result is the outcome of resolving a code against an order.
type Result struct {
	Discount  *Discount
	Amount    decimal.Decimal
	FreeItems []FreeItem
}

// CodeFilter is a fast negative membership test over known discount codes.
// A false return means the code definitely does not exist; true means it may.
type CodeFilter interface {
	MayContain(code string) bool
}

// Engine evaluates promotion codes against orders. Resolve runs inside the
// caller's transaction so the usage-count consumption commits or rolls back
// with the order itself.
type Engine struct {
	repo   Repository
	filter CodeFilter
	scale  int32
	now    func() time.Time
}

// NewEngine creates an Engine. filter may be nil to skip the fast-path code
// check. scale is the number of decimal places of the currency's minor unit.
func NewEngine(repo Repository, filter CodeFilter, scale int32) *Engine {
	return &Engine{
		repo:   repo,
		filter: filter,
		scale:  scale,
		now:    time.Now,
	}
}

// Resolve looks up the discount for code, checks every eligibility filter
// against the order, computes the monetary adjustment, and consumes one use.
// Eligibility failures are classified fault.KindNotApplicable; an unknown
// code is fault.KindNotFound; losing a usage-limit race is fault.KindConflict.
func (e *Engine) Resolve(ctx context.Context, code string, oc OrderContext) (*Result, error) {
	if e.filter != nil && !e.filter.MayContain(code) {
		return nil, fault.Wrap(fault.KindNotFound, ErrNotFound, code)
	}

	d, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, ErrNotFound, code)
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	if err := e.checkEligibility(d, oc); err != nil {
		return nil, err
	}

	amount, freeItems := Compute(d, oc, e.scale)

	if err := e.repo.ConsumeUse(ctx, d.ID); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, fault.Wrap(fault.KindConflict, err, d.Code)
		}
		return nil, errors.Wrap(err, "consume discount use")
	}

	return &Result{Discount: d, Amount: amount, FreeItems: freeItems}, nil
}

// checkEligibility applies the filters in their specified order: active,
// validity window, usage limit, minimum subtotal, applicability sets.
func (e *Engine) checkEligibility(d *Discount, oc OrderContext) error {
	if !d.Active {
		return fault.NotApplicable("discount %s is inactive", d.Code)
	}

	now := e.now()
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return fault.NotApplicable("discount %s is not yet valid", d.Code)
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return fault.NotApplicable("discount %s has expired", d.Code)
	}

	if d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit {
		return fault.NotApplicable("discount %s usage limit reached", d.Code)
	}

	if d.MinOrderAmount.IsPositive() && oc.Subtotal.LessThan(d.MinOrderAmount) {
		return fault.NotApplicable("order subtotal below %s minimum for discount %s",
			d.MinOrderAmount, d.Code)
	}

	if len(d.ProductIDs) > 0 && !anyItemMatches(oc.Items, d.ProductIDs, itemProductID) {
		return fault.NotApplicable("discount %s does not apply to any ordered product", d.Code)
	}
	if len(d.Categories) > 0 && !anyItemMatches(oc.Items, d.Categories, itemCategory) {
		return fault.NotApplicable("discount %s does not apply to any ordered category", d.Code)
	}
	if len(d.CustomerTiers) > 0 && !contains(d.CustomerTiers, oc.CustomerTier) {
		return fault.NotApplicable("discount %s does not apply to customer tier %q", d.Code, oc.CustomerTier)
	}
	if len(d.EmployeeRoles) > 0 && !intersects(d.EmployeeRoles, oc.EmployeeRoles) {
		return fault.NotApplicable("discount %s requires an eligible employee role", d.Code)
	}

	return nil
}

// Compute calculates the discount amount and any free units for an already
// eligible discount. The amount is rounded half-up at the given currency
// scale and can never exceed the order subtotal.
func Compute(d *Discount, oc OrderContext, scale int32) (decimal.Decimal, []FreeItem) {
	var (
		amount    decimal.Decimal
		freeItems []FreeItem
	)

	switch d.Type {
	case TypePercentage:
		amount = oc.Subtotal.Mul(d.Value).Div(hundred)
		if d.MaxDiscount.IsPositive() && amount.GreaterThan(d.MaxDiscount) {
			amount = d.MaxDiscount
		}
	case TypeFixedAmount:
		amount = decimal.Min(d.Value, oc.Subtotal)
	case TypeBuyXGetY:
		amount, freeItems = computeBuyXGetY(d, oc)
	default:
		return decimal.Zero, nil
	}

	amount = decimal.Min(amount, oc.Subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(scale), freeItems
}

// computeBuyXGetY grants free units of d.FreeProductID for every
// d.BuyQuantity qualifying units on the order. The reduction is capped at the
// line cost of the free units actually present on the order, so removing a
// free product from the cart never produces a negative line.
func computeBuyXGetY(d *Discount, oc OrderContext) (decimal.Decimal, []FreeItem) {
	if d.BuyQuantity <= 0 || d.FreeQuantity <= 0 {
		return decimal.Zero, nil
	}

	eligibleQty := 0
	for _, item := range oc.Items {
		if !isQualifyingItem(d, item) {
			continue
		}
		eligibleQty += item.Quantity
	}

	freeUnits := eligibleQty / d.BuyQuantity * d.FreeQuantity
	if freeUnits == 0 {
		return decimal.Zero, nil
	}

	// The free product must actually be on the order; only units present
	// can be reduced.
	var (
		presentQty int
		unitPrice  decimal.Decimal
	)
	for _, item := range oc.Items {
		if item.ProductID == d.FreeProductID {
			presentQty += item.Quantity
			unitPrice = item.UnitPrice
		}
	}
	if freeUnits > presentQty {
		freeUnits = presentQty
	}
	if freeUnits == 0 {
		return decimal.Zero, nil
	}

	var reduction decimal.Decimal
	switch d.FreeKind {
	case FreeKindFree:
		reduction = unitPrice
	case FreeKindPercentage:
		reduction = unitPrice.Mul(d.FreeValue).Div(hundred)
	case FreeKindFixedAmount:
		reduction = decimal.Min(d.FreeValue, unitPrice)
	default:
		reduction = unitPrice
	}

	amount := reduction.Mul(decimal.NewFromInt(int64(freeUnits)))
	lineCost := unitPrice.Mul(decimal.NewFromInt(int64(freeUnits)))
	amount = decimal.Min(amount, lineCost)

	return amount, []FreeItem{{ProductID: d.FreeProductID, Quantity: freeUnits}}
}

// isQualifyingItem reports whether an item counts toward the BuyXGetY buy
// threshold: it must satisfy whichever product/category restrictions the
// discount carries, all of them when both are set. The reward product itself
// does not count toward its own threshold (buy 2 get 1 must not collapse
// into buy 1 get 1) unless the product restriction names it explicitly.
func isQualifyingItem(d *Discount, item Item) bool {
	if item.ProductID == d.FreeProductID && !contains(d.ProductIDs, item.ProductID) {
		return false
	}
	if len(d.ProductIDs) > 0 && !contains(d.ProductIDs, item.ProductID) {
		return false
	}
	if len(d.Categories) > 0 && !contains(d.Categories, item.Category) {
		return false
	}
	return true
}

func itemProductID(i Item) string { return i.ProductID }
func itemCategory(i Item) string  { return i.Category }

func anyItemMatches(items []Item, allowed []string, key func(Item) string) bool {
	for _, item := range items {
		if contains(allowed, key(item)) {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range b {
		if contains(a, v) {
			return true
		}
	}
	return false
}
