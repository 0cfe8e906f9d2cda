package testutil

import (
	"context"
	"sync"

	"github.com/platefire/expedite/internal/ticket"
)

// Sink is a scripted ticket transport. Each device can be told to reject
// a number of deliveries before accepting; every accepted ticket is
// recorded in arrival order.
type Sink struct {
	mu        sync.Mutex
	failures  map[string]int
	attempts  map[string]int
	delivered []ticket.Ticket
}

// NewSink creates a sink that accepts everything.
func NewSink() *Sink {
	return &Sink{
		failures: make(map[string]int),
		attempts: make(map[string]int),
	}
}

// FailNext makes the next n deliveries to the device be rejected.
func (s *Sink) FailNext(deviceID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[deviceID] = n
}

// Deliver implements ticket.Sink.
func (s *Sink) Deliver(_ context.Context, t ticket.Ticket) (ticket.DeliveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[t.DeviceID]++
	if s.failures[t.DeviceID] > 0 {
		s.failures[t.DeviceID]--
		return ticket.DeliveryResult{Accepted: false, Reason: "printer offline"}, nil
	}
	s.delivered = append(s.delivered, t)
	return ticket.DeliveryResult{Accepted: true}, nil
}

// Delivered returns a copy of every accepted ticket in arrival order.
func (s *Sink) Delivered() []ticket.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ticket.Ticket, len(s.delivered))
	copy(out, s.delivered)
	return out
}

// Attempts returns how many deliveries the device has seen, accepted or not.
func (s *Sink) Attempts(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[deviceID]
}
