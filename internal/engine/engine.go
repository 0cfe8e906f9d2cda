// Package engine wires the order state machine, the routing registry, the
// ticket dispatcher, and the audit trail into one façade.
//
// CONCURRENCY MODEL:
//
// Every mutating operation on a given order is serialized through a
// per-order mutex, so history and status never see lost updates.
// Operations on different orders proceed fully in parallel. The registry
// and the audit store are global shared structures with their own internal
// synchronization.
//
// Dispatch never holds an order's lock across device I/O: the fan-out plan
// is computed under the lock, delivery runs outside it, and sentToKitchen
// flags are reconciled in a short second critical section.
//
// AUDIT DISCIPLINE:
//
// Every state-affecting operation appends exactly one audit entry, and the
// entry is appended before the mutation is committed. If the audit store
// is unavailable the operation fails and the order is left unchanged.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platefire/expedite/internal/audit"
	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/routing"
	"github.com/platefire/expedite/internal/ticket"
)

// DefaultUrgentPriority is assigned when an order is flagged urgent.
const DefaultUrgentPriority = 10

// Catalog resolves a menu item to its category, used to denormalize the
// category onto items at creation time so later recategorization never
// changes routing of already-placed orders.
type Catalog interface {
	CategoryOf(menuItemID string) (categoryID string, ok bool)
}

// Engine is the kitchen order dispatch core.
type Engine struct {
	registry   *routing.Registry
	auditLog   *audit.Store
	dispatcher *ticket.Dispatcher
	clock      Clock
	identity   Identity
	catalog    Catalog

	defaultDevice  string
	thresholds     order.OverdueThresholds
	urgentPriority int

	seq Sequence

	mu        sync.Mutex
	orders    map[string]*order.Order
	numbers   map[string]string // display number → order id
	locks     map[string]*sync.Mutex
	delivered map[string]map[ticket.PairKey]bool
	devices   map[string]routing.Device
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIdentity injects the user/session provider for audit attribution.
func WithIdentity(id Identity) Option {
	return func(e *Engine) { e.identity = id }
}

// WithCatalog injects the menu catalog used to denormalize categories.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithDefaultDevice sets the fallback device for items with no item or
// category assignment.
func WithDefaultDevice(deviceID string) Option {
	return func(e *Engine) { e.defaultDevice = deviceID }
}

// WithOverdueThresholds sets per-type overdue thresholds.
func WithOverdueThresholds(t order.OverdueThresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithUrgentPriority overrides the priority assigned to urgent orders.
func WithUrgentPriority(p int) Option {
	return func(e *Engine) { e.urgentPriority = p }
}

// WithDevices registers the external device reference set.
func WithDevices(devices []routing.Device) Option {
	return func(e *Engine) {
		for _, d := range devices {
			e.devices[d.ID] = d
		}
	}
}

// New creates an engine around the given registry, audit store, and
// ticket sink. Dependencies are explicit; the engine keeps no ambient
// global state.
func New(registry *routing.Registry, auditLog *audit.Store, dispatcher *ticket.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		registry:       registry,
		auditLog:       auditLog,
		dispatcher:     dispatcher,
		clock:          SystemClock{},
		identity:       systemIdentity,
		thresholds:     order.OverdueThresholds{},
		urgentPriority: DefaultUrgentPriority,
		orders:         make(map[string]*order.Order),
		numbers:        make(map[string]string),
		locks:          make(map[string]*sync.Mutex),
		delivered:      make(map[string]map[ticket.PairKey]bool),
		devices:        make(map[string]routing.Device),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewItem describes a line item at order creation.
type NewItem struct {
	MenuItemID   string
	CategoryID   string // optional; resolved via the catalog when empty
	Name         string
	Quantity     int
	Variant      string
	Modifiers    []string
	Instructions string
}

// NewOrder describes an order to create.
type NewOrder struct {
	Number            string
	Type              order.Type
	ReservationLinked bool
	Items             []NewItem
}

// CreateOrder registers a new order in pending state and journals it.
func (e *Engine) CreateOrder(ctx context.Context, req NewOrder) (*order.Order, error) {
	if req.Number == "" {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "order number is required"}
	}

	now := e.clock.Now()
	o := &order.Order{
		ID:                uuid.Must(uuid.NewV7()).String(),
		Number:            req.Number,
		Type:              req.Type,
		Status:            order.StatusPending,
		OrderTime:         now,
		ReservationLinked: req.ReservationLinked,
	}
	for _, it := range req.Items {
		category := it.CategoryID
		if category == "" && e.catalog != nil {
			if c, ok := e.catalog.CategoryOf(it.MenuItemID); ok {
				category = c
			}
		}
		quantity := it.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		o.Items = append(o.Items, order.Item{
			ID:           uuid.Must(uuid.NewV7()).String(),
			MenuItemID:   it.MenuItemID,
			CategoryID:   category,
			Name:         it.Name,
			Quantity:     quantity,
			Variant:      it.Variant,
			Modifiers:    it.Modifiers,
			Instructions: it.Instructions,
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.numbers[req.Number]; dup {
		return nil, &Error{Code: ErrCodeDuplicateOrderNumber, Message: "order number already in use: " + req.Number}
	}

	entry := e.newEntry(o.ID, o.Number, audit.ActionCreated, audit.LevelInfo,
		"order created", nil, statusSnapshot(o))
	if err := e.auditLog.Append(ctx, entry); err != nil {
		return nil, newAuditWriteFailure(o.ID, err)
	}

	e.orders[o.ID] = o
	e.numbers[req.Number] = o.ID
	e.locks[o.ID] = &sync.Mutex{}

	slog.Info("order created", "order", o.Number, "type", o.Type, "items", len(o.Items))
	return o.Clone(), nil
}

// Transition moves an order to a new status. Illegal moves fail with
// INVALID_TRANSITION and leave the order, including its history, untouched.
func (e *Engine) Transition(ctx context.Context, orderID string, to order.Status) error {
	return e.withOrder(orderID, func(o *order.Order) error {
		if !order.CanTransition(o.Status, to) {
			return newInvalidTransition(orderID, o.Status, to)
		}
		if to == order.StatusNoShow && !o.ReservationLinked {
			return newInvalidTransition(orderID, o.Status, to)
		}

		from := o.Status
		now := e.clock.Now()
		user := e.identity.CurrentUser()

		level := audit.LevelInfo
		if to == order.StatusCancelled || to == order.StatusNoShow {
			level = audit.LevelWarning
		}
		before := statusSnapshot(o)
		after := statusSnapshot(o)
		after["status"] = string(to)

		entry := e.newEntry(o.ID, o.Number, audit.ActionStatusChanged, level,
			"status "+from.DisplayLabel()+" → "+to.DisplayLabel(), before, after)
		if err := e.auditLog.Append(ctx, entry); err != nil {
			return newAuditWriteFailure(orderID, err)
		}

		o.Status = to
		o.History = append(o.History, order.StatusChange{From: from, To: to, At: now, By: user.ID})
		if to == order.StatusReady {
			t := now
			o.ActualReadyTime = &t
		}

		slog.Info("order transitioned", "order", o.Number, "from", from, "to", to, "by", user.ID)
		return nil
	})
}

// SetUrgent flags or unflags an order as urgent and adjusts its priority
// (urgent means the configured urgent priority, else 0). Idempotent, but always
// journaled.
func (e *Engine) SetUrgent(ctx context.Context, orderID string, urgent bool) error {
	return e.withOrder(orderID, func(o *order.Order) error {
		priority := 0
		if urgent {
			priority = e.urgentPriority
		}

		before := statusSnapshot(o)
		after := statusSnapshot(o)
		after["urgent"] = urgent
		after["priority"] = priority

		desc := "urgency cleared"
		if urgent {
			desc = "order flagged urgent"
		}
		entry := e.newEntry(o.ID, o.Number, audit.ActionUrgencyChanged, audit.LevelInfo, desc, before, after)
		if err := e.auditLog.Append(ctx, entry); err != nil {
			return newAuditWriteFailure(orderID, err)
		}

		o.Urgent = urgent
		o.Priority = priority
		slog.Info("order urgency changed", "order", o.Number, "urgent", urgent)
		return nil
	})
}

// Order returns a snapshot of the order.
func (e *Engine) Order(orderID string) (*order.Order, error) {
	var snap *order.Order
	err := e.withOrder(orderID, func(o *order.Order) error {
		snap = o.Clone()
		return nil
	})
	return snap, err
}

// ActiveOrders returns snapshots of every non-terminal order.
func (e *Engine) ActiveOrders() []*order.Order {
	e.mu.Lock()
	ids := make([]string, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var active []*order.Order
	for _, id := range ids {
		_ = e.withOrder(id, func(o *order.Order) error {
			if !o.Status.Terminal() {
				active = append(active, o.Clone())
			}
			return nil
		})
	}
	return active
}

// Queue returns the active orders in the canonical kitchen queue order:
// urgent first, then priority descending, then oldest first.
func (e *Engine) Queue() []*order.Order {
	queue := e.ActiveOrders()
	order.SortQueue(queue)
	return queue
}

// IsOverdue evaluates the overdue predicate for an order right now.
func (e *Engine) IsOverdue(orderID string) (bool, error) {
	o, err := e.Order(orderID)
	if err != nil {
		return false, err
	}
	return o.IsOverdue(e.clock.Now(), e.thresholds), nil
}

// OverdueThresholds returns the configured per-type thresholds.
func (e *Engine) OverdueThresholds() order.OverdueThresholds {
	t := make(order.OverdueThresholds, len(e.thresholds))
	for k, v := range e.thresholds {
		t[k] = v
	}
	return t
}

// AuditQuery exposes the audit trail to analytics/compliance screens.
func (e *Engine) AuditQuery(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	return e.auditLog.Query(ctx, f)
}

// AuditAnalytics exposes on-demand aggregates over the audit trail.
func (e *Engine) AuditAnalytics(ctx context.Context, from, to time.Time) (*audit.Analytics, error) {
	return e.auditLog.Analytics(ctx, from, to)
}

// withOrder runs fn with the order's per-id mutex held. This is the only
// path to an order's mutable state.
func (e *Engine) withOrder(orderID string, fn func(o *order.Order) error) error {
	e.mu.Lock()
	o, ok := e.orders[orderID]
	if !ok {
		e.mu.Unlock()
		return newUnknownOrder(orderID)
	}
	lock := e.locks[orderID]
	e.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(o)
}

// newEntry stamps an audit entry with identity, sequence, and time.
func (e *Engine) newEntry(orderID, orderNumber string, action audit.Action, level audit.Level, desc string, before, after map[string]any) audit.Entry {
	user := e.identity.CurrentUser()
	return audit.Entry{
		ID:              uuid.Must(uuid.NewV7()).String(),
		OrderID:         orderID,
		OrderNumber:     orderNumber,
		Action:          action,
		Level:           level,
		Description:     desc,
		Before:          before,
		After:           after,
		PerformedBy:     user.ID,
		PerformedByName: user.Name,
		Seq:             e.seq.Next(),
		Timestamp:       e.clock.Now(),
	}
}

// statusSnapshot captures the audit-relevant order fields.
func statusSnapshot(o *order.Order) map[string]any {
	return map[string]any{
		"status":   string(o.Status),
		"urgent":   o.Urgent,
		"priority": o.Priority,
	}
}
