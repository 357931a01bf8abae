// Package registry implements the action dispatch table.
//
// The table is static: every (entity type, action) pair is registered at
// startup, before the engine runs, replacing the late-bound module lookup
// the original client performed at dispatch time. A missing registration
// is therefore a per-item dispatch failure, not a runtime import error.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Executor performs the actual remote mutation for one (entity, action)
// pair. It receives the item's opaque payload and returns nil on success.
// How it talks to the backend is entirely its own business.
type Executor func(ctx context.Context, data map[string]any) error

// Registry maps (entity type, action) to executors.
//
// Keys are canonicalized (NFC, lower case, trimmed) so that registration
// and dispatch agree on Unicode spelling; "Profile" and "profile" are the
// same entity.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Key returns the canonical dispatch key for an entity type and action.
func Key(entityType, action string) string {
	return canonical(entityType) + "." + canonical(action)
}

func canonical(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

// Register adds an executor for the pair. Registering the same pair twice
// is an error: the table is built once at startup and silent overwrites
// would hide wiring mistakes.
func (r *Registry) Register(entityType, action string, exec Executor) error {
	if entityType == "" || action == "" {
		return fmt.Errorf("register executor: entity type and action are required")
	}
	if exec == nil {
		return fmt.Errorf("register executor: nil executor for %s", Key(entityType, action))
	}

	key := Key(entityType, action)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[key]; exists {
		return fmt.Errorf("register executor: duplicate registration for %s", key)
	}
	r.executors[key] = exec
	return nil
}

// Lookup returns the executor for the pair, if registered.
func (r *Registry) Lookup(entityType, action string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[Key(entityType, action)]
	return exec, ok
}

// Keys returns all registered dispatch keys, sorted. Used by the CLI and
// for diagnostics.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.executors))
	for k := range r.executors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered executors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}
