package engine

import (
	"context"
	"log/slog"
	"sort"

	"github.com/platefire/expedite/internal/audit"
	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/ticket"
)

// DispatchResult summarizes one send event.
type DispatchResult struct {
	// Sent maps device id → item ids delivered to it during this call.
	Sent map[string][]string

	// FullySent lists items whose every resolved device has now accepted;
	// these were flagged SentToKitchen.
	FullySent []string

	// Failed holds one UNDELIVERABLE_TICKET error per device whose retry
	// budget was exhausted. Those (item, device) pairs stay eligible for a
	// later Dispatch call.
	Failed []*ticket.DispatchError
}

// Dispatch resolves routing for the order's unsent items (optionally
// restricted to itemIDs) and delivers one ticket per destination device.
//
// Three phases: the fan-out plan is computed under the order's lock and
// the delivery history snapshotted under the engine lock; device I/O runs
// outside both; flags are reconciled in a second short critical section.
// SentToKitchen flips only
// when every resolved device for the item has accepted, so partial
// failures retry without duplicating tickets on devices that succeeded.
func (e *Engine) Dispatch(ctx context.Context, orderID string, itemIDs []string) (*DispatchResult, error) {
	plan, deliveredBefore, err := e.planDispatch(orderID, ticket.PlanOptions{ItemIDs: itemIDs})
	if err != nil {
		return nil, err
	}
	if len(plan.Tickets) == 0 {
		return &DispatchResult{Sent: map[string][]string{}}, nil
	}

	// Device I/O, outside the order lock.
	outcome := e.dispatcher.Execute(ctx, plan, deliveredBefore)

	result := &DispatchResult{
		Sent:   sentByDevice(outcome.Delivered),
		Failed: outcome.Failed,
	}

	err = e.withOrder(orderID, func(o *order.Order) error {
		history := e.recordDelivered(orderID, outcome.Delivered)

		var fullySent []string
		for itemID, devices := range plan.Routes {
			complete := true
			for _, d := range devices {
				if !history[ticket.PairKey{ItemID: itemID, DeviceID: d}] {
					complete = false
					break
				}
			}
			if complete {
				fullySent = append(fullySent, itemID)
			}
		}
		sort.Strings(fullySent)

		if len(fullySent) > 0 {
			entry := e.newEntry(o.ID, o.Number, audit.ActionSentToKitchen, audit.LevelInfo,
				"items sent to kitchen",
				nil,
				map[string]any{
					"devices":    devicePayload(plan, fullySent),
					"item_count": len(fullySent),
				})
			if err := e.auditLog.Append(ctx, entry); err != nil {
				return newAuditWriteFailure(orderID, err)
			}
			for _, id := range fullySent {
				if it, ok := o.Item(id); ok {
					it.SentToKitchen = true
				}
			}
			result.FullySent = fullySent
		}

		return e.journalFailures(ctx, o, outcome.Failed)
	})
	if err != nil {
		return result, err
	}

	slog.Info("dispatch finished",
		"order", plan.OrderNumber,
		"sent_items", len(result.FullySent),
		"failed_devices", len(result.Failed),
	)
	return result, nil
}

// Reprint re-renders and re-delivers the order's full current ticket set,
// ignoring and never mutating SentToKitchen flags.
func (e *Engine) Reprint(ctx context.Context, orderID string) (*DispatchResult, error) {
	plan, _, err := e.planDispatch(orderID, ticket.PlanOptions{IncludeSent: true, Reprint: true})
	if err != nil {
		return nil, err
	}

	outcome := e.dispatcher.Execute(ctx, plan, nil)
	result := &DispatchResult{Sent: map[string][]string{}, Failed: outcome.Failed}

	err = e.withOrder(orderID, func(o *order.Order) error {
		var devices []string
		for _, t := range plan.Tickets {
			devices = append(devices, t.DeviceID)
		}
		entry := e.newEntry(o.ID, o.Number, audit.ActionReprinted, audit.LevelInfo,
			"ticket set reprinted",
			nil,
			map[string]any{"devices": devices})
		if err := e.auditLog.Append(ctx, entry); err != nil {
			return newAuditWriteFailure(orderID, err)
		}
		return e.journalFailures(ctx, o, outcome.Failed)
	})
	if err != nil {
		return result, err
	}

	slog.Info("reprint finished", "order", plan.OrderNumber, "failed_devices", len(result.Failed))
	return result, nil
}

// planDispatch computes the fan-out under the order's lock, then snapshots
// the per-pair delivery history so Execute can skip already-accepted
// pairs without holding any lock.
func (e *Engine) planDispatch(orderID string, opts ticket.PlanOptions) (*ticket.Plan, map[ticket.PairKey]bool, error) {
	var plan *ticket.Plan
	err := e.withOrder(orderID, func(o *order.Order) error {
		if o.Status.Terminal() {
			return &Error{Code: ErrCodeOrderClosed, OrderID: orderID, Message: "order is in terminal state " + string(o.Status)}
		}
		p, err := ticket.BuildPlan(o, e.registry, e.defaultDevice, opts)
		if err != nil {
			return err
		}
		plan = p

		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return plan, e.deliveredSnapshot(orderID), nil
}

// deliveredSnapshot copies an order's delivery history under the engine
// lock. The delivered map is shared across orders, so the per-order lock
// alone is not enough to touch it.
func (e *Engine) deliveredSnapshot(orderID string) map[ticket.PairKey]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[ticket.PairKey]bool, len(e.delivered[orderID]))
	for pair := range e.delivered[orderID] {
		snap[pair] = true
	}
	return snap
}

// recordDelivered merges freshly accepted (item, device) pairs into the
// order's history and returns a snapshot of the merged state.
func (e *Engine) recordDelivered(orderID string, pairs []ticket.PairKey) map[ticket.PairKey]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	history := e.delivered[orderID]
	if history == nil {
		history = make(map[ticket.PairKey]bool, len(pairs))
		e.delivered[orderID] = history
	}
	for _, pair := range pairs {
		history[pair] = true
	}
	snap := make(map[ticket.PairKey]bool, len(history))
	for pair := range history {
		snap[pair] = true
	}
	return snap
}

// journalFailures writes one error-level entry per exhausted device.
// Delivery failures never block the order's state machine; they only
// surface through the result and the audit trail.
func (e *Engine) journalFailures(ctx context.Context, o *order.Order, failures []*ticket.DispatchError) error {
	for _, f := range failures {
		entry := e.newEntry(o.ID, o.Number, audit.ActionDeliveryFailed, audit.LevelError,
			f.Error(),
			nil,
			map[string]any{
				"device_id": f.DeviceID,
				"attempts":  f.Attempts,
				"reason":    f.Reason,
			})
		if err := e.auditLog.Append(ctx, entry); err != nil {
			return newAuditWriteFailure(o.ID, err)
		}
	}
	return nil
}

// sentByDevice groups delivered pairs into the device → items view used
// by the "items sent" audit screen.
func sentByDevice(pairs []ticket.PairKey) map[string][]string {
	sent := make(map[string][]string)
	for _, p := range pairs {
		sent[p.DeviceID] = append(sent[p.DeviceID], p.ItemID)
	}
	return sent
}

// devicePayload lists, per device, the fully-sent items it received.
func devicePayload(plan *ticket.Plan, fullySent []string) map[string]any {
	sent := make(map[string]bool, len(fullySent))
	for _, id := range fullySent {
		sent[id] = true
	}
	payload := make(map[string]any)
	for _, t := range plan.Tickets {
		var items []any
		for _, l := range t.Lines {
			if sent[l.ItemID] {
				items = append(items, map[string]any{"item_id": l.ItemID, "name": l.Name})
			}
		}
		if len(items) > 0 {
			payload[t.DeviceID] = items
		}
	}
	return payload
}
