package ticket

import (
	"sort"

	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/routing"
)

// DeviceResolver answers "which devices are assigned to this target". The
// routing registry satisfies it; tests use fixed maps.
type DeviceResolver interface {
	ResolveDevices(targetID string, targetType routing.TargetType) []string
}

// PlanOptions controls which items a plan covers.
type PlanOptions struct {
	// ItemIDs restricts the plan to a subset of the order's items.
	// Nil means every eligible item.
	ItemIDs []string

	// IncludeSent includes items already flagged SentToKitchen. Used by
	// reprint, which re-renders the full current ticket set.
	IncludeSent bool

	// Reprint marks the resulting tickets as reprints.
	Reprint bool
}

// Plan is the computed device→items fan-out for one send event. Building
// a plan performs no I/O; it is safe to compute under the order's lock.
type Plan struct {
	OrderID     string
	OrderNumber string
	Reprint     bool

	// Tickets holds one ticket per destination device, sorted by device id.
	Tickets []Ticket

	// Routes maps each planned item id to its resolved device ids.
	Routes map[string][]string
}

// Pairs returns every (item, device) delivery pair the plan covers.
func (p *Plan) Pairs() []PairKey {
	var pairs []PairKey
	for _, t := range p.Tickets {
		for _, l := range t.Lines {
			pairs = append(pairs, PairKey{ItemID: l.ItemID, DeviceID: t.DeviceID})
		}
	}
	return pairs
}

// BuildPlan resolves routing for the order's eligible items.
//
// Per-item precedence, preserved exactly: devices assigned to the item id,
// else devices assigned to the item's category id, else the default
// device. If an item resolves to nothing and no default device is
// configured, BuildPlan fails with a NO_ROUTABLE_DEVICE error and no plan.
//
// Voided items are never planned. Items already sent are skipped unless
// opts.IncludeSent is set.
func BuildPlan(o *order.Order, resolver DeviceResolver, defaultDevice string, opts PlanOptions) (*Plan, error) {
	var wanted map[string]bool
	if opts.ItemIDs != nil {
		wanted = make(map[string]bool, len(opts.ItemIDs))
		for _, id := range opts.ItemIDs {
			wanted[id] = true
		}
	}

	plan := &Plan{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Reprint:     opts.Reprint,
		Routes:      make(map[string][]string),
	}
	byDevice := make(map[string][]Line)

	for i := range o.Items {
		it := &o.Items[i]
		if wanted != nil && !wanted[it.ID] {
			continue
		}
		if it.Voided {
			continue
		}
		if it.SentToKitchen && !opts.IncludeSent {
			continue
		}

		devices := resolver.ResolveDevices(it.MenuItemID, routing.TargetItem)
		if len(devices) == 0 {
			devices = resolver.ResolveDevices(it.CategoryID, routing.TargetCategory)
		}
		if len(devices) == 0 {
			if defaultDevice == "" {
				return nil, newNoRoutableDeviceError(o.ID, it.ID)
			}
			devices = []string{defaultDevice}
		}

		plan.Routes[it.ID] = devices
		for _, d := range devices {
			byDevice[d] = append(byDevice[d], lineFromItem(it))
		}
	}

	deviceIDs := make([]string, 0, len(byDevice))
	for d := range byDevice {
		deviceIDs = append(deviceIDs, d)
	}
	sort.Strings(deviceIDs)

	for _, d := range deviceIDs {
		plan.Tickets = append(plan.Tickets, Ticket{
			DeviceID:    d,
			OrderID:     o.ID,
			OrderNumber: o.Number,
			Reprint:     opts.Reprint,
			Lines:       byDevice[d],
		})
	}
	return plan, nil
}
