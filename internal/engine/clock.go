package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time. It is injected so urgency and overdue
// computations are testable; production uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sequence is a monotonic logical counter used to stamp audit entries.
//
// Wall-clock timestamps are kept for humans, but ordering guarantees rest
// on the sequence: entries for an order read back in the exact order the
// operations were serialized, even when two operations land on the same
// wall-clock instant.
//
// Thread-safety: safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the counter.
// Each call returns a unique, strictly increasing value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}
