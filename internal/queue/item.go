package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the coarse scheduling class of a queued mutation.
// High drains before normal, normal before low, regardless of arrival order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// rank maps a priority to its sort position. Unknown values rank as normal
// so a hand-edited slot file cannot wedge the sort.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Valid reports whether p is one of the three known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status is the lifecycle state of a queued item.
//
// There is no succeeded status: an item whose executor call succeeds is
// removed from the queue entirely, so the queue only ever holds work that
// is still owed to the backend.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
)

// Item is one queued mutation awaiting execution against the backend.
//
// The JSON field names are the durable slot format; they must not change
// without a slot migration.
type Item struct {
	// ID is unique across the queue for all time. Generated at enqueue
	// time from a millisecond timestamp prefix plus a random suffix.
	ID string `json:"id"`

	// EntityType routes the item to the dispatch registry
	// (e.g. "messages", "documents", "applications", "profile").
	EntityType string `json:"entityType"`

	// Action is the verb within the entity type (e.g. "send", "upload").
	Action string `json:"action"`

	// Data is the opaque executor payload. Binary attachments are stored
	// in the flattened form produced by the payload package, never as
	// live handles.
	Data map[string]any `json:"data,omitempty"`

	// Timestamp is the creation time, the FIFO tie-break within a tier.
	Timestamp time.Time `json:"timestamp"`

	Priority Priority `json:"priority"`

	// Attempts counts failed processing attempts. It only increases.
	Attempts int `json:"attempts"`

	Status Status `json:"status"`

	// Error and LastAttempt are diagnostics set on the failure path.
	Error       string     `json:"error,omitempty"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
}

// Patch describes a partial update to an item. Nil fields are left
// untouched; Data replaces the payload wholesale when non-nil (last
// invocation wins, there is no deep merge).
type Patch struct {
	Priority    *Priority
	Data        map[string]any
	Attempts    *int
	Status      *Status
	Error       *string
	LastAttempt *time.Time
}

// apply merges the patch into the item. Attempts never decreases.
func (p Patch) apply(it *Item) {
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.Data != nil {
		it.Data = p.Data
	}
	if p.Attempts != nil && *p.Attempts > it.Attempts {
		it.Attempts = *p.Attempts
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.Error != nil {
		it.Error = *p.Error
	}
	if p.LastAttempt != nil {
		t := *p.LastAttempt
		it.LastAttempt = &t
	}
}

// IDGenerator produces a fresh unique item id for the given creation time.
// The default generator is timestamped + random; tests inject sequential
// generators for deterministic traces.
type IDGenerator func(now time.Time) string

// defaultID builds a time-prefixed id: the millisecond timestamp keeps ids
// roughly sortable for humans reading the slot file, the UUID suffix makes
// collisions within the same millisecond impossible in practice.
func defaultID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
