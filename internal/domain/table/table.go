package table

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is the seating status of a physical table.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusOccupied    Status = "occupied"
	StatusReserved    Status = "reserved"
	StatusCleaning    Status = "cleaning"
	StatusMaintenance Status = "maintenance"
)

// GroupStatus is the lifecycle state of a table group.
type GroupStatus string

const (
	GroupActive    GroupStatus = "active"
	GroupDissolved GroupStatus = "dissolved"
)

var (
	// ErrNotFound is returned when a requested table does not exist.
	ErrNotFound = errors.New("table not found")
	// ErrGroupNotFound is returned when a requested table group does not exist.
	ErrGroupNotFound = errors.New("table group not found")
	// ErrAlreadyGrouped is surfaced by the store when a member row would
	// place a table in two active groups at once.
	ErrAlreadyGrouped = errors.New("table already in an active group")
)

// Table is one physical table in an area of the restaurant.
type Table struct {
	ID     string
	Number int
	AreaID string
	Status Status
}

// Group merges two or more tables into one billing and seating unit.
type Group struct {
	ID          string
	Name        string
	Status      GroupStatus
	TableIDs    []string
	CreatedAt   time.Time
	DissolvedAt *time.Time
}

// Repository defines persistence for tables and table groups. Mutating
// methods participate in the ambient transaction when one is present.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Table, error)
	GetByIDs(ctx context.Context, ids []string) ([]Table, error)
	List(ctx context.Context) ([]Table, error)
	UpdateStatus(ctx context.Context, id string, status Status) error

	// CreateGroup inserts an active group and its member rows. It fails
	// with ErrAlreadyGrouped when any member is already in an active group.
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	// GroupedTableIDs reports which of the given tables are currently
	// members of an active group.
	GroupedTableIDs(ctx context.Context, ids []string) ([]string, error)
	// MarkDissolved flips the group to dissolved with the given timestamp.
	MarkDissolved(ctx context.Context, id string, at time.Time) error
}
