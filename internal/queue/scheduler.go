package queue

import "sort"

// Less is the scheduler's total order: priority tier first (high before
// normal before low), then ascending creation time within a tier.
//
// The sort applied with it is stable, so items created at the same instant
// keep their insertion order. This is what guarantees the drain order
// property: all high items in call order, then all normal, then all low.
func Less(a, b Item) bool {
	ra, rb := a.Priority.rank(), b.Priority.rank()
	if ra != rb {
		return ra < rb
	}
	return a.Timestamp.Before(b.Timestamp)
}

// sortItems re-sorts the queue in place into scheduler order.
// Called after every insert; the queue's physical order is the only index.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}
