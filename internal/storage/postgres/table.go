package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
)

const (
	selectTableSQL  = `SELECT id, number, area_id, status FROM restaurant_tables WHERE id = $1`
	selectTablesSQL = `SELECT id, number, area_id, status FROM restaurant_tables WHERE id = ANY($1) ORDER BY number`
	listTablesSQL   = `SELECT id, number, area_id, status FROM restaurant_tables ORDER BY number`

	updateTableStatusSQL = `UPDATE restaurant_tables SET status = $2 WHERE id = $1`

	insertGroupSQL       = `INSERT INTO table_groups (id, name, status, created_at) VALUES ($1, $2, $3, $4)`
	insertGroupMemberSQL = `INSERT INTO table_group_tables (group_id, table_id, active) VALUES ($1, $2, TRUE)`

	selectGroupSQL = `SELECT id, name, status, created_at, dissolved_at FROM table_groups WHERE id = $1`

	selectGroupMembersSQL = `SELECT table_id FROM table_group_tables WHERE group_id = $1 ORDER BY table_id`

	groupedTablesSQL = `SELECT table_id FROM table_group_tables WHERE table_id = ANY($1) AND active`

	dissolveGroupSQL = `UPDATE table_groups SET status = 'dissolved', dissolved_at = $2 WHERE id = $1`

	deactivateMembersSQL = `UPDATE table_group_tables SET active = FALSE WHERE group_id = $1`
)

var _ table.Repository = (*TableRepository)(nil)

// TableRepository implements table.Repository backed by PostgreSQL.
type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository returns a TableRepository that uses the given pool.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// GetByID loads a single table.
func (r *TableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	t, err := scanTable(conn(ctx, r.pool).QueryRow(ctx, selectTableSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("getting table %q: %w", id, err)
	}
	return t, nil
}

// GetByIDs loads the tables with the given ids; missing ids are simply
// absent from the result.
func (r *TableRepository) GetByIDs(ctx context.Context, ids []string) ([]table.Table, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, selectTablesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting tables: %w", err)
	}
	return collectTables(rows)
}

// List returns all tables ordered by number.
func (r *TableRepository) List(ctx context.Context) ([]table.Table, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return collectTables(rows)
}

// UpdateStatus sets the seating status of a table.
func (r *TableRepository) UpdateStatus(ctx context.Context, id string, status table.Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateTableStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of table %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return table.ErrNotFound
	}
	return nil
}

// CreateGroup inserts the group row and its member rows. The partial unique
// index on active member rows turns a concurrent merge of the same table
// into table.ErrAlreadyGrouped.
func (r *TableRepository) CreateGroup(ctx context.Context, g *table.Group) error {
	q := conn(ctx, r.pool)

	_, err := q.Exec(ctx, insertGroupSQL, g.ID, g.Name, string(g.Status), g.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating table group %q: %w", g.ID, err)
	}
	for _, tableID := range g.TableIDs {
		if _, err := q.Exec(ctx, insertGroupMemberSQL, g.ID, tableID); err != nil {
			if uniqueViolation(err, "one_active_group_per_table") {
				return table.ErrAlreadyGrouped
			}
			return fmt.Errorf("adding table %q to group %q: %w", tableID, g.ID, err)
		}
	}
	return nil
}

// GetGroup loads a group with its member table ids.
func (r *TableRepository) GetGroup(ctx context.Context, id string) (*table.Group, error) {
	q := conn(ctx, r.pool)

	var (
		g      table.Group
		status string
	)
	err := q.QueryRow(ctx, selectGroupSQL, id).Scan(&g.ID, &g.Name, &status, &g.CreatedAt, &g.DissolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrGroupNotFound
		}
		return nil, fmt.Errorf("getting table group %q: %w", id, err)
	}
	g.Status = table.GroupStatus(status)

	rows, err := q.Query(ctx, selectGroupMembersSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting members of group %q: %w", id, err)
	}
	g.TableIDs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var tableID string
		err := row.Scan(&tableID)
		return tableID, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting members of group %q: %w", id, err)
	}
	return &g, nil
}

// GroupedTableIDs reports which of the given tables are members of an
// active group.
func (r *TableRepository) GroupedTableIDs(ctx context.Context, ids []string) ([]string, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, groupedTablesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("checking group membership: %w", err)
	}
	grouped, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var tableID string
		err := row.Scan(&tableID)
		return tableID, err
	})
	if err != nil {
		return nil, fmt.Errorf("checking group membership: %w", err)
	}
	return grouped, nil
}

// MarkDissolved flips the group to dissolved and deactivates its member
// rows so the tables become mergeable again.
func (r *TableRepository) MarkDissolved(ctx context.Context, id string, at time.Time) error {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, dissolveGroupSQL, id, at)
	if err != nil {
		return fmt.Errorf("dissolving table group %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return table.ErrGroupNotFound
	}
	if _, err := q.Exec(ctx, deactivateMembersSQL, id); err != nil {
		return fmt.Errorf("deactivating members of group %q: %w", id, err)
	}
	return nil
}

func scanTable(row pgx.Row) (*table.Table, error) {
	var (
		t      table.Table
		status string
	)
	if err := row.Scan(&t.ID, &t.Number, &t.AreaID, &status); err != nil {
		return nil, err
	}
	t.Status = table.Status(status)
	return &t, nil
}

func collectTables(rows pgx.Rows) ([]table.Table, error) {
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (table.Table, error) {
		var (
			t      table.Table
			status string
		)
		err := row.Scan(&t.ID, &t.Number, &t.AreaID, &status)
		t.Status = table.Status(status)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning tables: %w", err)
	}
	return tables, nil
}
