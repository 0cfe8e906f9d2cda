package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = OverdueThresholds{
	TypeDineIn:   15 * time.Minute,
	TypeTakeaway: 25 * time.Minute,
}

func TestIsOverdue(t *testing.T) {
	placed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{Type: TypeDineIn, Status: StatusPending, OrderTime: placed}

	// Within the threshold: not overdue.
	assert.False(t, o.IsOverdue(placed.Add(14*time.Minute), testThresholds))

	// Past the threshold with no mutation at all: overdue flips on read.
	assert.True(t, o.IsOverdue(placed.Add(16*time.Minute), testThresholds))
}

func TestIsOverdueIgnoresFinishedOrders(t *testing.T) {
	placed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	late := placed.Add(2 * time.Hour)

	for _, s := range []Status{StatusReady, StatusServed, StatusCompleted, StatusCancelled, StatusNoShow} {
		o := &Order{Type: TypeDineIn, Status: s, OrderTime: placed}
		assert.Falsef(t, o.IsOverdue(late, testThresholds), "status %q should never be overdue", s)
	}
}

func TestIsOverdueDefaultThreshold(t *testing.T) {
	placed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{Type: TypeCatering, Status: StatusConfirmed, OrderTime: placed}

	assert.False(t, o.IsOverdue(placed.Add(DefaultOverdueThreshold), testThresholds))
	assert.True(t, o.IsOverdue(placed.Add(DefaultOverdueThreshold+time.Second), testThresholds))
}

func TestPreparationTime(t *testing.T) {
	placed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPreparing, OrderTime: placed}

	// Not ready yet: elapsed so far.
	assert.Equal(t, 7*time.Minute, o.PreparationTime(placed.Add(7*time.Minute)))

	// Once ready, the clock stops mattering.
	ready := placed.Add(11 * time.Minute)
	o.ActualReadyTime = &ready
	assert.Equal(t, 11*time.Minute, o.PreparationTime(placed.Add(3*time.Hour)))
}

func TestSortQueue(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := &Order{Number: "old", OrderTime: base}
	newer := &Order{Number: "new", OrderTime: base.Add(time.Minute)}
	urgent := &Order{Number: "urgent", Urgent: true, Priority: 10, OrderTime: base.Add(2 * time.Minute)}
	highPrio := &Order{Number: "high", Priority: 5, OrderTime: base.Add(3 * time.Minute)}

	queue := []*Order{newer, highPrio, older, urgent}
	SortQueue(queue)

	var got []string
	for _, o := range queue {
		got = append(got, o.Number)
	}
	// Urgent first, then priority descending, then oldest first.
	assert.Equal(t, []string{"urgent", "high", "old", "new"}, got)
}

func TestUnsentItemIDs(t *testing.T) {
	o := &Order{Items: []Item{
		{ID: "a"},
		{ID: "b", SentToKitchen: true},
		{ID: "c", Voided: true},
		{ID: "d", Comped: true},
	}}
	// Comped items are still prepared; voided and already-sent are not.
	assert.Equal(t, []string{"a", "d"}, o.UnsentItemIDs())
}

func TestCloneIsDeep(t *testing.T) {
	ready := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	o := &Order{
		ID:              "o1",
		Items:           []Item{{ID: "a", Modifiers: []string{"no onion"}}},
		History:         []StatusChange{{From: StatusPending, To: StatusConfirmed}},
		ActualReadyTime: &ready,
	}

	c := o.Clone()
	require.Equal(t, o, c)

	c.Items[0].Modifiers[0] = "extra onion"
	c.Items[0].SentToKitchen = true
	c.History[0].To = StatusCancelled
	*c.ActualReadyTime = ready.Add(time.Hour)

	assert.Equal(t, "no onion", o.Items[0].Modifiers[0])
	assert.False(t, o.Items[0].SentToKitchen)
	assert.Equal(t, StatusConfirmed, o.History[0].To)
	assert.Equal(t, ready, *o.ActualReadyTime)
}
