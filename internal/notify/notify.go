// Package notify broadcasts state-change events to connected POS clients and
// kitchen displays. Delivery is best-effort: publishing never blocks the
// committing caller, and consumers that miss an event recover by re-fetching
// current state.
package notify

import "time"

// Event types emitted by the engine.
const (
	EventOrderCreated    = "order.created"
	EventOrderStatus     = "order.status_changed"
	EventTablesMerged    = "tables.merged"
	EventTablesDissolved = "tables.dissolved"
)

// Event is a state-change notification. Payloads reference entities by
// identifier only; clients fetch details through the read endpoints.
type Event struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id,omitempty"`
	OrderNumber  string    `json:"order_number,omitempty"`
	OrderStatus  string    `json:"order_status,omitempty"`
	TableIDs     []string  `json:"table_ids,omitempty"`
	TableGroupID string    `json:"table_group_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events best-effort. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

// Nop is a Publisher that drops every event. Used in tests and when no
// broker is configured.
type Nop struct{}

func (Nop) Publish(Event) {}
