package table

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/txn"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/notify"
)

// ActiveOrderCounter reports how many non-terminal orders reference a table
// or an active table group. Implemented by the order repository; the
// coordinator consults it inside its own transaction so dissolve cannot race
// an order commit.
type ActiveOrderCounter interface {
	CountActiveByTable(ctx context.Context, tableID string) (int, error)
	CountActiveByGroup(ctx context.Context, groupID string) (int, error)
}

// Coordinator owns table status and table-group lifecycle. Together with the
// order service it is the only mutator of table state, keeping the at most
// one active order per table invariant transactional.
type Coordinator struct {
	tables Repository
	orders ActiveOrderCounter
	tx     txn.Runner
	events notify.Publisher
	now    func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(tables Repository, orders ActiveOrderCounter, tx txn.Runner, events notify.Publisher) *Coordinator {
	return &Coordinator{
		tables: tables,
		orders: orders,
		tx:     tx,
		events: events,
		now:    time.Now,
	}
}

// MergeTables merges two or more tables into a new active group, marking
// every member occupied. Tables already in an active group, under
// maintenance, or hosting an active order cannot be merged; a mid-service
// table folding into a group would leave its order's seat unaccounted for
// when the group dissolves.
func (c *Coordinator) MergeTables(ctx context.Context, tableIDs []string, name string) (*Group, error) {
	ids := dedupe(tableIDs)
	if len(ids) < 2 {
		return nil, fault.Validation("a table group needs at least 2 distinct tables, got %d", len(ids))
	}
	if name == "" {
		return nil, fault.Validation("table group name is required")
	}

	var group *Group
	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		tables, err := c.tables.GetByIDs(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "load tables")
		}
		if len(tables) != len(ids) {
			return fault.NotFound("%d of %d tables do not exist", len(ids)-len(tables), len(ids))
		}
		for _, t := range tables {
			if t.Status == StatusMaintenance {
				return fault.Conflict("table %d is under maintenance", t.Number)
			}
			n, err := c.orders.CountActiveByTable(ctx, t.ID)
			if err != nil {
				return errors.Wrap(err, "count active orders")
			}
			if n > 0 {
				return fault.Conflict("table %d already has an active order", t.Number)
			}
		}

		grouped, err := c.tables.GroupedTableIDs(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "check group membership")
		}
		if len(grouped) > 0 {
			return fault.Conflict("table %s is already in an active group", grouped[0])
		}

		group = &Group{
			ID:        uuid.New().String(),
			Name:      name,
			Status:    GroupActive,
			TableIDs:  ids,
			CreatedAt: c.now(),
		}
		if err := c.tables.CreateGroup(ctx, group); err != nil {
			if errors.Is(err, ErrAlreadyGrouped) {
				return fault.Wrap(fault.KindConflict, err, "create group")
			}
			return errors.Wrap(err, "create group")
		}

		for _, id := range ids {
			if err := c.tables.UpdateStatus(ctx, id, StatusOccupied); err != nil {
				return errors.Wrap(err, "occupy table")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.events.Publish(notify.Event{
		Type:         notify.EventTablesMerged,
		TableGroupID: group.ID,
		TableIDs:     group.TableIDs,
		OccurredAt:   c.now(),
	})
	return group, nil
}

// DissolveGroup dissolves an active group and returns its member tables to
// available. A group still referenced by an active order cannot be dissolved,
// and dissolving twice is an error rather than a silent no-op.
func (c *Coordinator) DissolveGroup(ctx context.Context, groupID string) error {
	var tableIDs []string
	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		g, err := c.tables.GetGroup(ctx, groupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return fault.Wrap(fault.KindNotFound, err, groupID)
			}
			return errors.Wrap(err, "load group")
		}
		if g.Status != GroupActive {
			return fault.State("table group %s is already dissolved", groupID)
		}

		active, err := c.orders.CountActiveByGroup(ctx, groupID)
		if err != nil {
			return errors.Wrap(err, "count active orders")
		}
		if active > 0 {
			return fault.Conflict("table group %s has %d active orders", groupID, active)
		}

		if err := c.tables.MarkDissolved(ctx, groupID, c.now()); err != nil {
			return errors.Wrap(err, "dissolve group")
		}
		for _, id := range g.TableIDs {
			if err := c.tables.UpdateStatus(ctx, id, StatusAvailable); err != nil {
				return errors.Wrap(err, "release table")
			}
		}
		tableIDs = g.TableIDs
		return nil
	})
	if err != nil {
		return err
	}

	c.events.Publish(notify.Event{
		Type:         notify.EventTablesDissolved,
		TableGroupID: groupID,
		TableIDs:     tableIDs,
		OccurredAt:   c.now(),
	})
	return nil
}

// ClaimSeat verifies the seat behind ref can host a new order and marks its
// tables occupied. It must run inside the order creation transaction; the
// active-order checks here plus the store's partial unique indexes are what
// make two concurrent claims of the same table resolve to exactly one commit.
func (c *Coordinator) ClaimSeat(ctx context.Context, ref SeatRef) error {
	ids, err := c.resolveTableIDs(ctx, ref)
	if err != nil {
		return err
	}

	if ref.TableID != "" {
		t, err := c.tables.GetByID(ctx, ref.TableID)
		if err != nil {
			return errors.Wrap(err, "load table")
		}
		if t.Status == StatusMaintenance {
			return fault.Conflict("table %d is under maintenance", t.Number)
		}
		grouped, err := c.tables.GroupedTableIDs(ctx, []string{ref.TableID})
		if err != nil {
			return errors.Wrap(err, "check group membership")
		}
		if len(grouped) > 0 {
			return fault.Conflict("table %s belongs to an active group; seat the order on the group", ref.TableID)
		}
		n, err := c.orders.CountActiveByTable(ctx, ref.TableID)
		if err != nil {
			return errors.Wrap(err, "count active orders")
		}
		if n > 0 {
			return fault.Conflict("table %s already has an active order", ref.TableID)
		}
	} else {
		n, err := c.orders.CountActiveByGroup(ctx, ref.GroupID)
		if err != nil {
			return errors.Wrap(err, "count active orders")
		}
		if n > 0 {
			return fault.Conflict("table group %s already has an active order", ref.GroupID)
		}
		// A member table with its own direct active order also blocks the
		// group: every physical table may host at most one active order.
		for _, id := range ids {
			n, err := c.orders.CountActiveByTable(ctx, id)
			if err != nil {
				return errors.Wrap(err, "count active orders")
			}
			if n > 0 {
				return fault.Conflict("table %s already has an active order", id)
			}
		}
	}

	for _, id := range ids {
		if err := c.tables.UpdateStatus(ctx, id, StatusOccupied); err != nil {
			return errors.Wrap(err, "occupy table")
		}
	}
	return nil
}

// FreeSeat returns the seat's tables to available, but only when no other
// active order still references it. Runs inside the transition transaction
// that made the calling order terminal, so the count cannot go stale.
func (c *Coordinator) FreeSeat(ctx context.Context, ref SeatRef) error {
	var (
		remaining int
		err       error
	)
	if ref.GroupID != "" {
		remaining, err = c.orders.CountActiveByGroup(ctx, ref.GroupID)
	} else {
		remaining, err = c.orders.CountActiveByTable(ctx, ref.TableID)
	}
	if err != nil {
		return errors.Wrap(err, "count active orders")
	}
	if remaining > 0 {
		return nil
	}

	ids, err := c.resolveTableIDs(ctx, ref)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.tables.UpdateStatus(ctx, id, StatusAvailable); err != nil {
			return errors.Wrap(err, "release table")
		}
	}
	return nil
}

func (c *Coordinator) resolveTableIDs(ctx context.Context, ref SeatRef) ([]string, error) {
	switch {
	case ref.GroupID != "":
		g, err := c.tables.GetGroup(ctx, ref.GroupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return nil, fault.Wrap(fault.KindNotFound, err, ref.GroupID)
			}
			return nil, errors.Wrap(err, "load group")
		}
		if g.Status != GroupActive {
			return nil, fault.State("table group %s is dissolved", ref.GroupID)
		}
		return g.TableIDs, nil
	case ref.TableID != "":
		t, err := c.tables.GetByID(ctx, ref.TableID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fault.Wrap(fault.KindNotFound, err, ref.TableID)
			}
			return nil, errors.Wrap(err, "load table")
		}
		return []string{t.ID}, nil
	default:
		return nil, fault.Validation("a table or table group reference is required")
	}
}

// SeatRef points at the seating unit an order occupies: one table or one
// table group, never both.
type SeatRef struct {
	TableID string
	GroupID string
}

// IsZero reports whether the ref points at nothing.
func (r SeatRef) IsZero() bool { return r.TableID == "" && r.GroupID == "" }

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
