package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, number, status, channel, customer_id, employee_id,
		table_id, table_group_id, discount_id, discount_code,
		subtotal, tax, delivery_fee, discount_amount, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, category, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectOrderSQL = `SELECT id, number, status, channel, customer_id, employee_id,
		table_id, table_group_id, discount_id, discount_code,
		subtotal, tax, delivery_fee, discount_amount, total,
		created_at, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at
		FROM orders WHERE id = $1`

	selectOrderItemsSQL = `SELECT product_id, name, category, quantity, unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2,
		confirmed_at = $3, preparing_at = $4, ready_at = $5, delivered_at = $6, cancelled_at = $7
		WHERE id = $1 AND status = $8`

	updateOrderDiscountSQL = `UPDATE orders SET discount_id = $2, discount_code = $3,
		discount_amount = $4, total = $5 WHERE id = $1`

	countActiveByTableSQL = `SELECT COUNT(*) FROM orders
		WHERE table_id = $1 AND status NOT IN ('delivered', 'cancelled')`

	countActiveByGroupSQL = `SELECT COUNT(*) FROM orders
		WHERE table_group_id = $1 AND status NOT IN ('delivered', 'cancelled')`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items. A collision on the order number
// surfaces as order.ErrNumberTaken; a collision on the one-active-order-
// per-seat indexes surfaces as a conflict.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := conn(ctx, r.pool)

	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, string(o.Status), string(o.Channel), o.CustomerID, o.EmployeeID,
		o.TableID, o.TableGroupID, o.DiscountID, o.DiscountCode,
		o.Subtotal, o.Tax, o.DeliveryFee, o.DiscountAmount, o.Total, o.CreatedAt,
	)
	if err != nil {
		switch {
		case uniqueViolation(err, "orders_number_uniq"):
			return order.ErrNumberTaken
		case uniqueViolation(err, "one_active_order_per_table"),
			uniqueViolation(err, "one_active_order_per_group"):
			return fault.Wrap(fault.KindConflict, err, "seat already has an active order")
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}

	for _, it := range o.Items {
		_, err := q.Exec(ctx, insertOrderItemSQL,
			o.ID, it.ProductID, it.Name, it.Category, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("creating order item for %q: %w", o.Number, err)
		}
	}
	return nil
}

// GetByID loads an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	q := conn(ctx, r.pool)

	o, err := scanOrder(q.QueryRow(ctx, selectOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err := q.Query(ctx, selectOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order items for %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Name, &it.Category, &it.Quantity, &it.UnitPrice, &it.LineTotal)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting order items for %q: %w", id, err)
	}
	return o, nil
}

// UpdateStatus persists the status and transition timestamps guarded by the
// status the caller read; a missed guard means a concurrent writer won.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderStatusSQL,
		o.ID, string(o.Status),
		o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.DeliveredAt, o.CancelledAt,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStale
	}
	return nil
}

// UpdateDiscount persists the discount reference and recomputed totals.
func (r *OrderRepository) UpdateDiscount(ctx context.Context, o *order.Order) error {
	_, err := conn(ctx, r.pool).Exec(ctx, updateOrderDiscountSQL,
		o.ID, o.DiscountID, o.DiscountCode, o.DiscountAmount, o.Total)
	if err != nil {
		return fmt.Errorf("updating discount of order %q: %w", o.ID, err)
	}
	return nil
}

// CountActiveByTable counts non-terminal orders referencing the table directly.
func (r *OrderRepository) CountActiveByTable(ctx context.Context, tableID string) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, countActiveByTableSQL, tableID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active orders for table %q: %w", tableID, err)
	}
	return n, nil
}

// CountActiveByGroup counts non-terminal orders referencing the group.
func (r *OrderRepository) CountActiveByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, countActiveByGroupSQL, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active orders for group %q: %w", groupID, err)
	}
	return n, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o               order.Order
		status, channel string
	)
	err := row.Scan(
		&o.ID, &o.Number, &status, &channel, &o.CustomerID, &o.EmployeeID,
		&o.TableID, &o.TableGroupID, &o.DiscountID, &o.DiscountCode,
		&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.DiscountAmount, &o.Total,
		&o.CreatedAt, &o.ConfirmedAt, &o.PreparingAt, &o.ReadyAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	o.Channel = order.Channel(channel)
	return &o, nil
}
