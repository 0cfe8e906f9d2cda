package order

// Status is an order's lifecycle state.
//
// The allowed transition graph is:
//
//	pending → confirmed → preparing → ready → served → completed
//
// with cancelled reachable from any non-terminal state. noShow is a
// parallel terminal state for reservation-linked orders and is only
// reachable before the kitchen takes over (pending, confirmed).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "noShow"
)

// transitions maps each status to the statuses directly reachable from it.
// This table is the single source of truth for CanTransition.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusPreparing, StatusCancelled, StatusNoShow},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusServed, StatusCancelled},
	StatusServed:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// displayLabels maps each status to its human-readable label.
// Explicit table, never derived from the enum spelling.
var displayLabels = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusPreparing: "Preparing",
	StatusReady:     "Ready",
	StatusServed:    "Served",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
	StatusNoShow:    "No Show",
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s is a terminal state (no outgoing transitions).
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// DisplayLabel returns the UI label for s, or the raw value for unknown statuses.
func (s Status) DisplayLabel() string {
	if label, ok := displayLabels[s]; ok {
		return label
	}
	return string(s)
}

// CanTransition reports whether the graph allows moving from one status
// to another. Self-transitions are not allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s, in graph order.
// The returned slice is a copy.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}
