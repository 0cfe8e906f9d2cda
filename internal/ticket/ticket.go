// Package ticket turns an order's unsent items into per-device kitchen
// tickets and delivers them through an external sink.
//
// Routing resolution per item follows a strict precedence: the item id
// first, then the item's denormalized category id, then the configured
// default device. Items routed to several devices appear verbatim on each
// destination ticket; the duplication is intentional, every station needs
// the full item detail.
//
// Delivery is at-least-once per device and tracked per (item, device)
// pair, so a partial failure can be retried without re-printing on devices
// that already accepted.
package ticket

import (
	"fmt"
	"strings"

	"github.com/platefire/expedite/internal/order"
)

// Line is one item as it appears on a device ticket, carrying the full
// detail a station needs to prepare it.
type Line struct {
	ItemID       string   `json:"item_id"`
	Name         string   `json:"name"`
	Quantity     int      `json:"quantity"`
	Variant      string   `json:"variant,omitempty"`
	Modifiers    []string `json:"modifiers,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// Ticket is the rendered, device-specific subset of an order's items.
type Ticket struct {
	DeviceID    string `json:"device_id"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reprint     bool   `json:"reprint,omitempty"`
	Lines       []Line `json:"lines"`
}

// lineFromItem copies the dispatch-relevant item fields onto a ticket line.
func lineFromItem(it *order.Item) Line {
	l := Line{
		ItemID:       it.ID,
		Name:         it.Name,
		Quantity:     it.Quantity,
		Variant:      it.Variant,
		Instructions: it.Instructions,
	}
	if len(it.Modifiers) > 0 {
		l.Modifiers = make([]string, len(it.Modifiers))
		copy(l.Modifiers, it.Modifiers)
	}
	return l
}

// Render produces the plain-text form of a ticket sent to the transport.
// The output is deterministic: line order follows the order's item order.
func Render(t Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DEVICE %s\n", t.DeviceID)
	if t.Reprint {
		fmt.Fprintf(&b, "ORDER #%s (REPRINT)\n", t.OrderNumber)
	} else {
		fmt.Fprintf(&b, "ORDER #%s\n", t.OrderNumber)
	}
	b.WriteString(strings.Repeat("-", 28) + "\n")

	for _, l := range t.Lines {
		fmt.Fprintf(&b, "%dx %s", l.Quantity, l.Name)
		if l.Variant != "" {
			fmt.Fprintf(&b, " [%s]", l.Variant)
		}
		b.WriteByte('\n')
		for _, m := range l.Modifiers {
			fmt.Fprintf(&b, "  + %s\n", m)
		}
		if l.Instructions != "" {
			fmt.Fprintf(&b, "  ! %s\n", l.Instructions)
		}
	}
	return b.String()
}
