// Package engine implements the sync processor that drains the offline
// mutation queue against the backend.
//
// # Drain cycles
//
// A cycle moves the processor idle -> draining -> idle. It starts only when
// the connectivity monitor reports online, the queue is non-empty, and no
// other cycle holds the guard. Items are processed strictly sequentially,
// one outstanding executor call at a time, in the queue's scheduler order.
// Sequential dispatch keeps the ordering guarantee auditable and avoids
// slamming the backend with a burst after a long offline stretch.
//
// # Failure semantics
//
// A failing item never aborts the cycle: its attempt counter, error, and
// last-attempt time are recorded through the queue mutator API and the loop
// moves on. Once an item has failed MaxAttempts times it is dropped from
// the queue and the drop is counted as a failure - never silently. A cycle
// that ends with items still queued surfaces one aggregate, retryable
// ErrItemsRemaining; it does not block future cycles.
//
// Going offline mid-cycle needs no special handling: the next executor call
// fails, is recorded as an ordinary per-item failure, and the queue keeps
// the item for the next cycle.
package engine
