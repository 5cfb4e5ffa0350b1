package order

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/customer"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/discount"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/employee"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/product"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/txn"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/notify"
)

var hundred = decimal.NewFromInt(100)

// numberAttempts bounds order-number regeneration on collision.
const numberAttempts = 5

// Pricing supplies the externally configured rate policy: tax percentage,
// flat delivery fee for the delivery channel, and the currency scale amounts
// are rounded to (half-up).
type Pricing struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
	Scale       int32
}

// CreateRequest is the input for creating an order.
type CreateRequest struct {
	CustomerID   string
	Channel      Channel
	TableID      string
	TableGroupID string
	EmployeeID   string
	DiscountCode string
	Items        []ItemRequest
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Service orchestrates order creation and workflow transitions. It is,
// jointly with the table coordinator, the only writer of table and order
// status, and every mutating method runs as a single store transaction.
type Service struct {
	orders    Repository
	products  product.Repository
	customers customer.Repository
	employees employee.Repository
	engine    *discount.Engine
	discounts discount.Repository
	seats     *table.Coordinator
	tx        txn.Runner
	events    notify.Publisher
	pricing   Pricing

	now       func() time.Time
	newNumber func(t time.Time) string
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	products product.Repository,
	customers customer.Repository,
	employees employee.Repository,
	engine *discount.Engine,
	discounts discount.Repository,
	seats *table.Coordinator,
	tx txn.Runner,
	events notify.Publisher,
	pricing Pricing,
) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		customers: customers,
		employees: employees,
		engine:    engine,
		discounts: discounts,
		seats:     seats,
		tx:        tx,
		events:    events,
		pricing:   pricing,
		now:       time.Now,
		newNumber: newOrderNumber,
	}
}

// Create validates the request, snapshots prices, computes totals and the
// optional discount, claims the seat for dine-in orders, and persists
// everything in one transaction. Exactly one of two concurrent calls
// targeting the same table commits; the other fails with a conflict.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	seat := table.SeatRef{TableID: req.TableID, GroupID: req.TableGroupID}

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cust, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return fault.Wrap(fault.KindNotFound, err, req.CustomerID)
			}
			return errors.Wrap(err, "load customer")
		}
		if !cust.Active {
			return fault.Validation("customer %s is inactive", cust.ID)
		}

		var emp *employee.Employee
		if req.EmployeeID != "" {
			emp, err = s.employees.GetByID(ctx, req.EmployeeID)
			if err != nil {
				if errors.Is(err, employee.ErrNotFound) {
					return fault.Wrap(fault.KindNotFound, err, req.EmployeeID)
				}
				return errors.Wrap(err, "load employee")
			}
			if !emp.Active {
				return fault.Validation("employee %s is inactive", emp.ID)
			}
		}

		items, subtotal, err := s.buildItems(ctx, req.Items)
		if err != nil {
			return err
		}

		now := s.now()
		o = &Order{
			ID:           uuid.New().String(),
			Status:       StatusPending,
			Channel:      req.Channel,
			CustomerID:   req.CustomerID,
			EmployeeID:   req.EmployeeID,
			TableID:      req.TableID,
			TableGroupID: req.TableGroupID,
			Subtotal:     subtotal,
			Items:        items,
			CreatedAt:    now,
		}
		o.Tax = subtotal.Mul(s.pricing.TaxRate).Div(hundred).Round(s.pricing.Scale)
		if req.Channel == ChannelDelivery {
			o.DeliveryFee = s.pricing.DeliveryFee
		} else {
			o.DeliveryFee = decimal.Zero
		}

		o.DiscountAmount = decimal.Zero
		if req.DiscountCode != "" {
			res, err := s.engine.Resolve(ctx, req.DiscountCode, s.discountContext(o, cust, emp))
			if err != nil {
				return err
			}
			o.DiscountID = res.Discount.ID
			o.DiscountCode = res.Discount.Code
			o.DiscountAmount = res.Amount
		}
		o.Total = o.Subtotal.Add(o.Tax).Add(o.DeliveryFee).Sub(o.DiscountAmount)

		if req.Channel == ChannelDineIn {
			if err := s.seats.ClaimSeat(ctx, seat); err != nil {
				return err
			}
		}

		return s.persistWithNumber(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(notify.Event{
		Type:        notify.EventOrderCreated,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		OrderStatus: string(o.Status),
		OccurredAt:  s.now(),
	})
	return o, nil
}

// Transition moves an order along the workflow. Reaching a terminal state
// frees the seat when no other active order references it, and cancellation
// returns a consumed discount use.
func (s *Service) Transition(ctx context.Context, orderID string, target Status) (*Order, error) {
	if !target.Valid() {
		return nil, fault.Validation("unknown order status %q", target)
	}

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fault.Wrap(fault.KindNotFound, err, orderID)
			}
			return errors.Wrap(err, "load order")
		}

		from := o.Status
		if !CanTransition(from, target) {
			return fault.State("cannot transition order %s from %s to %s", o.Number, from, target)
		}

		o.Status = target
		o.StampTransition(target, s.now())
		if err := s.orders.UpdateStatus(ctx, o, from); err != nil {
			if errors.Is(err, ErrStale) {
				return fault.Wrap(fault.KindConflict, err, orderID)
			}
			return errors.Wrap(err, "update order status")
		}

		if target == StatusCancelled && o.DiscountID != "" {
			if err := s.discounts.ReleaseUse(ctx, o.DiscountID); err != nil {
				return errors.Wrap(err, "release discount use")
			}
		}

		if target.Terminal() && o.Channel == ChannelDineIn {
			seat := table.SeatRef{TableID: o.TableID, GroupID: o.TableGroupID}
			if !seat.IsZero() {
				if err := s.seats.FreeSeat(ctx, seat); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(notify.Event{
		Type:        notify.EventOrderStatus,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		OrderStatus: string(o.Status),
		OccurredAt:  s.now(),
	})
	return o, nil
}

// ApplyDiscount attaches a discount code to a pending order and recomputes
// its totals. Re-applying the code the order already carries is an
// idempotent no-op; a different code while one is applied is a conflict
// because codes do not stack.
func (s *Service) ApplyDiscount(ctx context.Context, orderID, code string) (*Order, error) {
	if code == "" {
		return nil, fault.Validation("discount code is required")
	}

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fault.Wrap(fault.KindNotFound, err, orderID)
			}
			return errors.Wrap(err, "load order")
		}

		if o.Status != StatusPending {
			return fault.State("discounts can only be applied to pending orders, order %s is %s", o.Number, o.Status)
		}
		if o.DiscountCode == code {
			return nil // already applied, do not consume another use
		}
		if o.DiscountCode != "" {
			return fault.Conflict("order %s already carries discount %s", o.Number, o.DiscountCode)
		}

		cust, err := s.customers.GetByID(ctx, o.CustomerID)
		if err != nil {
			return errors.Wrap(err, "load customer")
		}
		var emp *employee.Employee
		if o.EmployeeID != "" {
			emp, err = s.employees.GetByID(ctx, o.EmployeeID)
			if err != nil {
				return errors.Wrap(err, "load employee")
			}
		}

		res, err := s.engine.Resolve(ctx, code, s.discountContext(o, cust, emp))
		if err != nil {
			return err
		}

		o.DiscountID = res.Discount.ID
		o.DiscountCode = res.Discount.Code
		o.DiscountAmount = res.Amount
		o.Total = o.Subtotal.Add(o.Tax).Add(o.DeliveryFee).Sub(o.DiscountAmount)
		return s.orders.UpdateDiscount(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, err, orderID)
		}
		return nil, errors.Wrap(err, "load order")
	}
	return o, nil
}

// buildItems fetches the referenced products in one batch, validates them,
// and snapshots unit prices and categories into order lines.
func (s *Service) buildItems(ctx context.Context, reqs []ItemRequest) ([]Item, decimal.Decimal, error) {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "load products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(reqs))
	subtotal := decimal.Zero
	for i, r := range reqs {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, decimal.Zero, fault.NotFound("product %s does not exist", r.ProductID)
		}
		if !p.Active {
			return nil, decimal.Zero, fault.Validation("product %s is not available", p.ID)
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Quantity:  r.Quantity,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal, nil
}

// discountContext projects the order into what the discount engine evaluates.
func (s *Service) discountContext(o *Order, cust *customer.Customer, emp *employee.Employee) discount.OrderContext {
	items := make([]discount.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = discount.Item{
			ProductID: it.ProductID,
			Category:  it.Category,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	oc := discount.OrderContext{
		Subtotal:     o.Subtotal,
		Items:        items,
		CustomerTier: string(cust.Tier),
	}
	if emp != nil {
		oc.EmployeeRoles = emp.Roles
	}
	return oc
}

// persistWithNumber creates the order, regenerating the order number on a
// uniqueness collision instead of failing the request.
func (s *Service) persistWithNumber(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		o.Number = s.newNumber(o.CreatedAt)
		err := s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNumberTaken) {
			return errors.Wrap(err, "create order")
		}
	}
	return errors.Errorf("could not allocate a unique order number after %d attempts", numberAttempts)
}

func validateCreate(req CreateRequest) error {
	if req.CustomerID == "" {
		return fault.Validation("customer is required")
	}
	if !req.Channel.Valid() {
		return fault.Validation("unknown order channel %q", req.Channel)
	}
	if len(req.Items) == 0 {
		return fault.Validation("at least one order item is required")
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return fault.Validation("order item product is required")
		}
		if it.Quantity <= 0 {
			return fault.Validation("quantity must be positive for product %s", it.ProductID)
		}
	}

	seat := table.SeatRef{TableID: req.TableID, GroupID: req.TableGroupID}
	if req.TableID != "" && req.TableGroupID != "" {
		return fault.Validation("an order references a table or a table group, not both")
	}
	switch req.Channel {
	case ChannelDineIn:
		if seat.IsZero() {
			return fault.Validation("dine-in orders require a table or table group")
		}
	default:
		if !seat.IsZero() {
			return fault.Validation("%s orders cannot reference a table", req.Channel)
		}
	}
	return nil
}

// newOrderNumber builds a day-scoped number with a random suffix, e.g.
// ORD-20250614-042137. Collisions are handled by regeneration.
func newOrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", t.Format("20060102"), rand.IntN(1_000_000))
}
