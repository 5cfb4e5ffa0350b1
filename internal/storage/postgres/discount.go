package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/discount"
)

const (
	selectDiscountSQL = `SELECT id, code, type, value, min_order_amount, max_discount,
		valid_from, valid_until, usage_limit, used_count, active,
		product_ids, categories, customer_tiers, employee_roles,
		buy_quantity, free_product_id, free_quantity, free_kind, free_value
		FROM discounts WHERE UPPER(code) = UPPER($1)`

	listDiscountCodesSQL = `SELECT code FROM discounts WHERE active = TRUE`

	// The limit check and the increment are one statement: two concurrent
	// orders cannot both take the last remaining use.
	consumeUseSQL = `UPDATE discounts SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

	releaseUseSQL = `UPDATE discounts SET used_count = GREATEST(used_count - 1, 0) WHERE id = $1`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its code, case-insensitively. Returns
// discount.ErrNotFound when no such code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	d, err := scanDiscount(conn(ctx, r.pool).QueryRow(ctx, selectDiscountSQL, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return d, nil
}

// ConsumeUse increments the usage counter unless the limit is exhausted.
func (r *DiscountRepository) ConsumeUse(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, consumeUseSQL, id)
	if err != nil {
		return fmt.Errorf("consuming use of discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrUsageLimitReached
	}
	return nil
}

// ReleaseUse decrements the usage counter, flooring at zero.
func (r *DiscountRepository) ReleaseUse(ctx context.Context, id string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, releaseUseSQL, id); err != nil {
		return fmt.Errorf("releasing use of discount %q: %w", id, err)
	}
	return nil
}

// ListCodes returns every active discount code, used to seed the code filter.
func (r *DiscountRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listDiscountCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	return codes, nil
}

func scanDiscount(row pgx.Row) (*discount.Discount, error) {
	var (
		d                    discount.Discount
		dType, freeKind      string
		validFrom, validTill *time.Time
		value, freeValue     decimal.Decimal
	)
	err := row.Scan(
		&d.ID, &d.Code, &dType, &value, &d.MinOrderAmount, &d.MaxDiscount,
		&validFrom, &validTill, &d.UsageLimit, &d.UsedCount, &d.Active,
		&d.ProductIDs, &d.Categories, &d.CustomerTiers, &d.EmployeeRoles,
		&d.BuyQuantity, &d.FreeProductID, &d.FreeQuantity, &freeKind, &freeValue,
	)
	if err != nil {
		return nil, err
	}
	d.Type = discount.Type(dType)
	d.Value = value
	d.ValidFrom = validFrom
	d.ValidUntil = validTill
	d.FreeKind = discount.FreeKind(freeKind)
	d.FreeValue = freeValue
	return &d, nil
}
