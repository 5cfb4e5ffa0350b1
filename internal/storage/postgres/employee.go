package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/employee"
)

const selectEmployeeSQL = `SELECT id, name, roles, active FROM employees WHERE id = $1`

var _ employee.Repository = (*EmployeeRepository)(nil)

// EmployeeRepository implements employee.Repository backed by PostgreSQL.
type EmployeeRepository struct {
	pool *pgxpool.Pool
}

// NewEmployeeRepository returns an EmployeeRepository that uses the given pool.
func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// GetByID returns a single employee, or employee.ErrNotFound. Roles come
// back as a TEXT[] column, one role identifier per element.
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*employee.Employee, error) {
	var e employee.Employee
	err := conn(ctx, r.pool).QueryRow(ctx, selectEmployeeSQL, id).
		Scan(&e.ID, &e.Name, &e.Roles, &e.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("getting employee %q: %w", id, err)
	}
	return &e, nil
}
