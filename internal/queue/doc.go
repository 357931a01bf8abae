// Package queue implements the durable offline mutation queue.
//
// The queue is an ordered sequence of pending mutations. Its physical order
// always matches the scheduler's total order (priority tier, then arrival
// time): every insert triggers a full stable re-sort, which is cheap at the
// queue sizes a single client produces.
//
// All mutations go through exactly three paths - Add, Remove, Update. Each
// one persists the full queue through the configured Store before returning
// and notifies subscribers, so the durable slot, the entity view index, and
// the pending counter can never drift from the in-memory queue.
//
// Storage failures are absorbed here: a failed save is logged and the
// in-memory queue remains authoritative for the rest of the session. Callers
// of the mutator API never see storage errors.
package queue
