package ticket

import (
	"context"
	"log/slog"
	"time"
)

// DeliveryResult is the sink's verdict for one ticket.
type DeliveryResult struct {
	Accepted bool
	Reason   string // set when rejected
}

// Sink is the external printing transport. A rejected result and a
// transport error are both treated as retryable; an accepted result is
// durable. Devices reported offline are still attempted - the transport
// may queue.
type Sink interface {
	Deliver(ctx context.Context, t Ticket) (DeliveryResult, error)
}

// PairKey identifies one (item, device) delivery. Delivery state is
// tracked at this granularity, never per order, so a partial failure
// retries safely without duplicating tickets on devices that succeeded.
type PairKey struct {
	ItemID   string
	DeviceID string
}

const (
	// DefaultMaxAttempts bounds delivery retries per device per send.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the base of the exponential retry backoff.
	DefaultBackoff = 200 * time.Millisecond
	// DefaultAttemptTimeout bounds a single Deliver call.
	DefaultAttemptTimeout = 5 * time.Second
)

// Dispatcher executes fan-out plans against a sink.
type Dispatcher struct {
	sink           Sink
	maxAttempts    int
	backoff        time.Duration
	attemptTimeout time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts sets the per-device retry budget.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

// WithBackoff sets the base backoff between attempts. The delay doubles
// after each rejection.
func WithBackoff(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = base }
}

// WithAttemptTimeout sets the per-attempt delivery timeout.
func WithAttemptTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.attemptTimeout = timeout }
}

// NewDispatcher creates a dispatcher with bounded retries.
func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:           sink,
		maxAttempts:    DefaultMaxAttempts,
		backoff:        DefaultBackoff,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Outcome reports what a plan execution actually delivered.
type Outcome struct {
	// Delivered lists the (item, device) pairs accepted during this
	// execution, in ticket order.
	Delivered []PairKey

	// Failed holds one UNDELIVERABLE_TICKET error per device whose retry
	// budget was exhausted.
	Failed []*DispatchError
}

// FailedDevices returns the device ids with exhausted retry budgets.
func (o *Outcome) FailedDevices() []string {
	var ids []string
	for _, f := range o.Failed {
		ids = append(ids, f.DeviceID)
	}
	return ids
}

// Execute delivers the plan's tickets, skipping (item, device) pairs in
// alreadyDelivered unless the plan is a reprint. Reprints re-deliver the
// full set regardless of history and never feed back into it.
//
// Execute performs the device I/O and must be called outside any order
// lock; it blocks for at most attempts × (timeout + backoff) per device.
// An exhausted device never aborts the rest of the plan.
func (d *Dispatcher) Execute(ctx context.Context, plan *Plan, alreadyDelivered map[PairKey]bool) *Outcome {
	out := &Outcome{}

	for _, t := range plan.Tickets {
		ticket := t
		if !plan.Reprint && len(alreadyDelivered) > 0 {
			ticket.Lines = pendingLines(t, alreadyDelivered)
		}
		if len(ticket.Lines) == 0 {
			continue
		}

		reason, attempts, ok := d.deliverWithRetry(ctx, ticket)
		if !ok {
			failure := newUndeliverableError(plan.OrderID, ticket.DeviceID, reason, attempts)
			out.Failed = append(out.Failed, failure)
			slog.Error("ticket delivery exhausted retries",
				"order", plan.OrderNumber,
				"device", ticket.DeviceID,
				"attempts", attempts,
				"reason", reason,
			)
			continue
		}

		if !plan.Reprint {
			for _, l := range ticket.Lines {
				out.Delivered = append(out.Delivered, PairKey{ItemID: l.ItemID, DeviceID: ticket.DeviceID})
			}
		}
		slog.Info("ticket delivered",
			"order", plan.OrderNumber,
			"device", ticket.DeviceID,
			"lines", len(ticket.Lines),
			"reprint", plan.Reprint,
		)
	}
	return out
}

// deliverWithRetry attempts one ticket until accepted or the budget runs
// out. Returns the last rejection reason, the attempt count, and whether
// the ticket was accepted.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, t Ticket) (reason string, attempts int, ok bool) {
	delay := d.backoff

	for attempts = 1; attempts <= d.maxAttempts; attempts++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		res, err := d.sink.Deliver(attemptCtx, t)
		cancel()

		switch {
		case err != nil:
			reason = err.Error()
		case res.Accepted:
			return "", attempts, true
		default:
			reason = res.Reason
		}

		slog.Warn("ticket delivery rejected",
			"order", t.OrderNumber,
			"device", t.DeviceID,
			"attempt", attempts,
			"reason", reason,
		)

		if attempts == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err().Error(), attempts, false
		case <-time.After(delay):
		}
		delay *= 2
	}
	return reason, d.maxAttempts, false
}

// pendingLines drops lines whose (item, device) pair already succeeded in
// an earlier attempt of the same send cycle.
func pendingLines(t Ticket, delivered map[PairKey]bool) []Line {
	var lines []Line
	for _, l := range t.Lines {
		if !delivered[PairKey{ItemID: l.ItemID, DeviceID: t.DeviceID}] {
			lines = append(lines, l)
		}
	}
	return lines
}
