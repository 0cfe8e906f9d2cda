// Package scheduler periodically scans the active order set and emits at
// most one prioritized notification event per scan. Urgent orders win over
// overdue ones, overdue orders win over newly arrived ones, so a noisy
// kitchen still sees the most important thing first.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/platefire/expedite/internal/order"
)

// Kind classifies a notification event.
type Kind string

const (
	KindUrgent   Kind = "urgent"
	KindOverdue  Kind = "overdue"
	KindNewOrder Kind = "newOrder"
)

// Event is a single notification produced by a scan.
type Event struct {
	Kind        Kind
	OrderID     string
	OrderNumber string
	Timestamp   time.Time
}

// Lister supplies the active order snapshots each scan works on.
type Lister interface {
	ActiveOrders() []*order.Order
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DefaultInterval is the scan period when none is configured.
const DefaultInterval = 10 * time.Second

// Scheduler scans a Lister on a fixed interval. Events are delivered on a
// buffered channel; a scan whose event cannot be buffered drops it rather
// than stall the loop.
type Scheduler struct {
	lister     Lister
	clock      Clock
	interval   time.Duration
	thresholds order.OverdueThresholds

	events chan Event

	// seen and flagged carry state between scans so each condition
	// fires once per order, not once per tick.
	seen    map[string]struct{}
	flagged map[string]Kind
	primed  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithInterval sets the scan period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithOverdueThresholds overrides the per-type overdue ceilings.
func WithOverdueThresholds(t order.OverdueThresholds) Option {
	return func(s *Scheduler) { s.thresholds = t }
}

// New creates a scheduler over the given lister. The first scan primes the
// known-order set without emitting, so a restart does not replay every open
// order as new.
func New(lister Lister, opts ...Option) *Scheduler {
	s := &Scheduler{
		lister:   lister,
		clock:    systemClock{},
		interval: DefaultInterval,
		events:   make(chan Event, 16),
		seen:     make(map[string]struct{}),
		flagged:  make(map[string]Kind),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the notification stream.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Run scans on the configured interval until the context is cancelled.
// Must be called from exactly one goroutine; all scan state lives here.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Scan()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping: context cancelled")
			close(s.events)
			return ctx.Err()

		case <-ticker.C:
			s.Scan()
		}
	}
}

// Scan inspects the active orders and emits the single highest-priority
// event, if any. The priming scan only records what already exists. Run
// calls Scan on the interval; callers needing deterministic ticks (tests,
// simulation) may call it directly instead of Run.
func (s *Scheduler) Scan() {
	now := s.clock.Now()
	orders := s.lister.ActiveOrders()

	var best *Event
	alive := make(map[string]struct{}, len(orders))

	for _, o := range orders {
		alive[o.ID] = struct{}{}

		kind, ok := s.classify(o, now)
		if !ok {
			continue
		}
		candidate := &Event{Kind: kind, OrderID: o.ID, OrderNumber: o.Number, Timestamp: now}
		if best == nil || rank(candidate.Kind) > rank(best.Kind) {
			best = candidate
		}
	}

	// Forget closed orders so a reopened condition can fire again later.
	for id := range s.seen {
		if _, ok := alive[id]; !ok {
			delete(s.seen, id)
			delete(s.flagged, id)
		}
	}

	if !s.primed {
		// Priming scan: record the existing orders without emitting so a
		// restart does not replay every open order as new.
		for id := range alive {
			s.seen[id] = struct{}{}
		}
		s.primed = true
		return
	}
	if best == nil {
		return
	}

	// A newcomer that lost the priority race stays unseen and gets its
	// newOrder event on a later scan.
	s.seen[best.OrderID] = struct{}{}
	if best.Kind != KindNewOrder {
		s.flagged[best.OrderID] = best.Kind
	}
	for _, o := range orders {
		if _, known := s.seen[o.ID]; !known && (o.Urgent || o.IsOverdue(now, s.thresholds)) {
			// Escalated before ever being announced; the escalation event
			// covers the announcement.
			s.seen[o.ID] = struct{}{}
		}
	}
	select {
	case s.events <- *best:
		slog.Info("notification emitted", "kind", best.Kind, "order", best.OrderNumber)
	default:
		slog.Warn("notification dropped: channel full", "kind", best.Kind, "order", best.OrderNumber)
	}
}

// classify decides whether the order warrants a notification this scan.
// Each escalation fires once: urgent supersedes a prior overdue or new
// notification for the same order.
func (s *Scheduler) classify(o *order.Order, now time.Time) (Kind, bool) {
	switch {
	case o.Urgent:
		if s.flagged[o.ID] != KindUrgent {
			return KindUrgent, true
		}
	case o.IsOverdue(now, s.thresholds):
		if k := s.flagged[o.ID]; k != KindOverdue && k != KindUrgent {
			return KindOverdue, true
		}
	default:
		if _, known := s.seen[o.ID]; !known {
			return KindNewOrder, true
		}
	}
	return "", false
}

func rank(k Kind) int {
	switch k {
	case KindUrgent:
		return 3
	case KindOverdue:
		return 2
	case KindNewOrder:
		return 1
	}
	return 0
}
