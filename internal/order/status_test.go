package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusPreparing, false},
		{StatusPending, StatusReady, false},
		{StatusConfirmed, StatusPreparing, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusServed, false},
		{StatusPreparing, StatusReady, true},
		{StatusPreparing, StatusServed, false},
		{StatusPreparing, StatusNoShow, false},
		{StatusPreparing, StatusCancelled, true},
		{StatusReady, StatusServed, true},
		{StatusReady, StatusPreparing, false},
		{StatusServed, StatusCompleted, true},
		{StatusServed, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusPending, false},
		{StatusPending, StatusPending, false},
		{Status(""), StatusPending, false},
	}
	for _, tt := range tests {
		got := CanTransition(tt.from, tt.to)
		assert.Equalf(t, tt.want, got, "CanTransition(%q, %q)", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.Truef(t, s.Terminal(), "%q should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusServed} {
		assert.Falsef(t, s.Terminal(), "%q should not be terminal", s)
	}
	assert.False(t, Status("bogus").Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusNoShow.Valid())
	assert.False(t, Status("unknown").Valid())
	assert.False(t, Status("").Valid())
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Preparing", StatusPreparing.DisplayLabel())
	assert.Equal(t, "No Show", StatusNoShow.DisplayLabel())

	// Unknown statuses fall back to the raw value instead of panicking.
	assert.Equal(t, "weird", Status("weird").DisplayLabel())
}

func TestNextStatusesIsACopy(t *testing.T) {
	next := NextStatuses(StatusPending)
	assert.Equal(t, []Status{StatusConfirmed, StatusCancelled, StatusNoShow}, next)

	next[0] = StatusCompleted
	assert.Equal(t, []Status{StatusConfirmed, StatusCancelled, StatusNoShow}, NextStatuses(StatusPending))
}
