package engine

import (
	"errors"
	"fmt"
)

// ErrItemsRemaining is the aggregate, retryable cycle outcome: some items
// failed and stay queued for the next cycle. It is informational - callers
// may show it to the user but must not treat it as fatal.
var ErrItemsRemaining = errors.New("some queued items failed and will be retried on the next sync")

// StorageError wraps a durable slot load/save failure. It is logged and
// absorbed inside the queue layer; it never reaches a mutation caller.
type StorageError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("queue storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DispatchNotFoundError means no executor is registered for an item's
// (entity type, action) pair. It is recorded as a per-item failure and
// counts toward the item's attempts, so a permanently unroutable item
// eventually drops out through retry exhaustion instead of pinning the
// queue forever.
type DispatchNotFoundError struct {
	EntityType string
	Action     string
}

func (e *DispatchNotFoundError) Error() string {
	return fmt.Sprintf("no executor registered for %s.%s", e.EntityType, e.Action)
}

// ExecutionError wraps an executor call that rejected (network or backend
// failure). Recorded as a per-item failure.
type ExecutionError struct {
	ItemID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing queued item %s: %v", e.ItemID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RetryExhaustedError records an item dropped after failing the configured
// maximum number of times. The drop is counted as a failure and logged -
// an item is never discarded silently.
type RetryExhaustedError struct {
	ItemID   string
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("queued item %s dropped after %d failed attempts: %v", e.ItemID, e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }

// IsDispatchNotFound reports whether err is a missing-executor failure.
// Uses errors.As to see through wrapping.
func IsDispatchNotFound(err error) bool {
	var de *DispatchNotFoundError
	return errors.As(err, &de)
}

// IsRetryExhausted reports whether err is a retry-exhaustion drop.
func IsRetryExhausted(err error) bool {
	var re *RetryExhaustedError
	return errors.As(err, &re)
}
