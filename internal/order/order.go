package order

import (
	"time"
)

// Type classifies how an order is fulfilled. Overdue thresholds are
// configured per type.
type Type string

const (
	TypeDineIn   Type = "dineIn"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
	TypeCatering Type = "catering"
)

// DefaultOverdueThreshold applies when no per-type threshold is configured.
const DefaultOverdueThreshold = 20 * time.Minute

// OverdueThresholds maps an order type to the elapsed time after which a
// still-unfinished order counts as overdue.
type OverdueThresholds map[Type]time.Duration

// StatusChange records one step of an order's lifecycle history.
type StatusChange struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
	By   string    `json:"by"`
}

// Item is a single line item on an order.
//
// CategoryID is denormalized from the menu catalog when the item is
// created so routing stays stable even if the menu item is later
// recategorized.
type Item struct {
	ID           string   `json:"id"`
	MenuItemID   string   `json:"menu_item_id"`
	CategoryID   string   `json:"category_id"`
	Name         string   `json:"name"`
	Quantity     int      `json:"quantity"`
	Variant      string   `json:"variant,omitempty"`
	Modifiers    []string `json:"modifiers,omitempty"`
	Instructions string   `json:"instructions,omitempty"`

	// SentToKitchen flips to true exactly once per send cycle, after every
	// resolved device has accepted the item's ticket.
	SentToKitchen bool `json:"sent_to_kitchen"`
	Voided        bool `json:"voided"`
	Comped        bool `json:"comped"`
}

// Order is a single customer transaction with line items, a lifecycle
// status, and routing/audit metadata.
type Order struct {
	// ID is the stable internal identity (UUIDv7).
	ID string `json:"id"`
	// Number is the display identity, unique among orders not yet purged.
	Number string `json:"number"`

	Type   Type   `json:"type"`
	Status Status `json:"status"`
	Items  []Item `json:"items"`

	OrderTime       time.Time  `json:"order_time"`
	ActualReadyTime *time.Time `json:"actual_ready_time,omitempty"`

	Priority int  `json:"priority"`
	Urgent   bool `json:"urgent"`

	// ReservationLinked marks orders that came from a reservation and may
	// therefore end in noShow.
	ReservationLinked bool `json:"reservation_linked,omitempty"`

	History []StatusChange `json:"history"`
}

// IsOverdue reports whether the order has been open longer than its
// type's threshold. Overdue measures kitchen lateness, so it stops
// applying once the food is out: ready, served, and terminal orders are
// never overdue. Pure function of now and the order's fields.
func (o *Order) IsOverdue(now time.Time, thresholds OverdueThresholds) bool {
	if o.Status == StatusReady || o.Status == StatusServed || o.Status.Terminal() {
		return false
	}
	threshold, ok := thresholds[o.Type]
	if !ok {
		threshold = DefaultOverdueThreshold
	}
	return now.Sub(o.OrderTime) > threshold
}

// PreparationTime returns the time from order placement to ready, or the
// elapsed time so far if the order has not yet been marked ready.
func (o *Order) PreparationTime(now time.Time) time.Duration {
	if o.ActualReadyTime != nil {
		return o.ActualReadyTime.Sub(o.OrderTime)
	}
	return now.Sub(o.OrderTime)
}

// Item returns the line item with the given id.
func (o *Order) Item(id string) (*Item, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// UnsentItemIDs returns the ids of items still eligible for dispatch:
// not yet sent and not voided.
func (o *Order) UnsentItemIDs() []string {
	var ids []string
	for i := range o.Items {
		if !o.Items[i].SentToKitchen && !o.Items[i].Voided {
			ids = append(ids, o.Items[i].ID)
		}
	}
	return ids
}

// Clone returns a deep copy. Snapshots handed to readers (queue views,
// scheduler) must never alias the engine's mutable state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]Item, len(o.Items))
	copy(c.Items, o.Items)
	for i := range c.Items {
		if mods := o.Items[i].Modifiers; mods != nil {
			c.Items[i].Modifiers = make([]string, len(mods))
			copy(c.Items[i].Modifiers, mods)
		}
	}
	c.History = make([]StatusChange, len(o.History))
	copy(c.History, o.History)
	if o.ActualReadyTime != nil {
		t := *o.ActualReadyTime
		c.ActualReadyTime = &t
	}
	return &c
}
