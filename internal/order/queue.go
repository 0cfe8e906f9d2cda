package order

import "sort"

// Less defines the canonical kitchen queue ordering: urgent orders first,
// then by priority descending, then by order time ascending (oldest
// first). Every queue consumer must reproduce this ordering exactly.
func Less(a, b *Order) bool {
	if a.Urgent != b.Urgent {
		return a.Urgent
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.OrderTime.Before(b.OrderTime)
}

// SortQueue sorts orders in place using the canonical queue ordering.
// The sort is stable so equal orders keep their insertion order.
func SortQueue(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return Less(orders[i], orders[j])
	})
}
