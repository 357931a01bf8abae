package queue

// Index is the derived grouping of queue items by entity type, each group
// in queue order. It has no identity of its own: it is recomputed from a
// queue snapshot and never written back.
type Index map[string][]Item

// BuildIndex groups items by entity type, preserving queue order within
// each group. Pure function of its input.
func BuildIndex(items []Item) Index {
	idx := make(Index)
	for _, it := range items {
		idx[it.EntityType] = append(idx[it.EntityType], it)
	}
	return idx
}

// PendingItems returns the queued items of the given entity type in
// queue order.
func (q *Queue) PendingItems(entityType string) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Item
	for _, it := range q.items {
		if it.EntityType == entityType {
			out = append(out, cloneItem(it))
		}
	}
	return out
}

// HasPending reports whether any item of the given entity type is queued.
func (q *Queue) HasPending(entityType string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].EntityType == entityType {
			return true
		}
	}
	return false
}

// EntityIndex returns the current derived index.
func (q *Queue) EntityIndex() Index {
	q.mu.Lock()
	defer q.mu.Unlock()
	return BuildIndex(q.snapshotLocked())
}
