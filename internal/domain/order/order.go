package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Channel is the fulfillment channel of an order.
type Channel string

const (
	ChannelDineIn   Channel = "dine_in"
	ChannelTakeaway Channel = "takeaway"
	ChannelDelivery Channel = "delivery"
)

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelDineIn, ChannelTakeaway, ChannelDelivery:
		return true
	}
	return false
}

// Status is a state of the order workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// forward is the single forward path of the workflow. Cancelled is reachable
// from every non-terminal state and is handled separately.
var forward = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusDelivered,
}

// Terminal reports whether s is an end state of the workflow.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal workflow edge.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return forward[from] == to
}

// Item is one order line. UnitPrice is the price snapshot taken at order
// creation; later catalog changes never touch it. Category is snapshotted
// with it so discount applicability is judged against what was sold.
type Item struct {
	ProductID string
	Name      string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Order is the aggregate the engine manages. Relationships are held by
// identifier only; callers resolve them through the repositories.
type Order struct {
	ID      string
	Number  string
	Status  Status
	Channel Channel

	CustomerID   string
	EmployeeID   string
	TableID      string
	TableGroupID string
	DiscountID   string
	DiscountCode string

	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	Items []Item

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	PreparingAt *time.Time
	ReadyAt     *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// StampTransition records the timestamp matching a newly reached status.
func (o *Order) StampTransition(to Status, at time.Time) {
	switch to {
	case StatusConfirmed:
		o.ConfirmedAt = &at
	case StatusPreparing:
		o.PreparingAt = &at
	case StatusReady:
		o.ReadyAt = &at
	case StatusDelivered:
		o.DeliveredAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
	}
}

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNumberTaken is surfaced by the store when a generated order number
	// collides; the service regenerates and retries.
	ErrNumberTaken = errors.New("order number already taken")
	// ErrStale is surfaced by the store when a status update loses a race,
	// i.e. the order is no longer in the status the caller read.
	ErrStale = errors.New("order was modified concurrently")
)

// Repository defines persistence for orders. Mutating methods participate in
// the ambient transaction when one is present.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus persists the order's status and transition timestamps,
	// guarded by the status the order was read at (from). ErrStale when
	// the guard misses.
	UpdateStatus(ctx context.Context, o *Order, from Status) error
	// UpdateDiscount persists the discount reference and recomputed totals.
	UpdateDiscount(ctx context.Context, o *Order) error

	// CountActiveByTable counts non-terminal orders referencing the table
	// directly; CountActiveByGroup counts those referencing the group.
	CountActiveByTable(ctx context.Context, tableID string) (int, error)
	CountActiveByGroup(ctx context.Context, groupID string) (int, error)
}
