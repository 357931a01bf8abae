package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the durable slot the queue mirrors itself into.
//
// Load returns the persisted items, an empty slice on first run, and must
// absorb corruption internally (log and return empty) rather than fail the
// session. Save replaces the slot contents wholesale.
type Store interface {
	Load() ([]Item, error)
	Save(items []Item) error
}

// ChangeFunc receives a snapshot of the queue after every mutation.
// Derived views (entity index consumers, UI badges) subscribe with it
// instead of polling.
type ChangeFunc func(items []Item)

// Queue is the owned, mutex-guarded mutation queue.
//
// All mutations run a read-modify-sort-persist-notify sequence under one
// lock, so within a process the queue, its durable mirror, and its derived
// views move together. Two processes sharing one slot are not protected:
// last writer wins, an accepted limitation of the slot design.
type Queue struct {
	mu    sync.Mutex
	items []Item
	store Store
	now   func() time.Time
	newID IDGenerator
	stats Stats

	subMu   sync.Mutex
	subs    map[int]ChangeFunc
	nextSub int
}

// Option configures a Queue.
type Option func(*Queue)

// WithNow injects the time source used for item timestamps and ids.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator injects the item id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(q *Queue) { q.newID = gen }
}

// New creates a Queue backed by the given store and loads any persisted
// items into memory. A load failure is logged and the session starts with
// an empty queue; it is never fatal.
func New(store Store, opts ...Option) *Queue {
	q := &Queue{
		store: store,
		now:   time.Now,
		newID: defaultID,
		subs:  make(map[int]ChangeFunc),
	}
	for _, opt := range opts {
		opt(q)
	}

	items, err := store.Load()
	if err != nil {
		slog.Warn("queue load failed, starting empty", "error", err)
		items = nil
	}
	sortItems(items)
	q.items = items
	return q
}

// Add constructs a new pending item, inserts it in scheduler order,
// persists, and returns the fresh id.
//
// An unknown priority falls back to normal rather than erroring: enqueueing
// must not fail for reasons the user cannot act on while offline.
func (q *Queue) Add(entityType, action string, data map[string]any, priority Priority) (string, error) {
	if entityType == "" {
		return "", fmt.Errorf("add to queue: entity type is required")
	}
	if action == "" {
		return "", fmt.Errorf("add to queue: action is required")
	}
	if !priority.Valid() {
		priority = PriorityNormal
	}

	q.mu.Lock()
	now := q.now()
	item := Item{
		ID:         q.newID(now),
		EntityType: entityType,
		Action:     action,
		Data:       data,
		Timestamp:  now,
		Priority:   priority,
		Status:     StatusPending,
	}
	q.items = append(q.items, item)
	sortItems(q.items)
	q.persistLocked()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	slog.Debug("queued mutation",
		"id", item.ID,
		"entity", entityType,
		"action", action,
		"priority", priority,
	)

	q.notify(snapshot)
	return item.ID, nil
}

// Remove deletes the item with the given id. Absent ids are a no-op:
// the success path and a concurrent clear may race benignly.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.persistLocked()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(snapshot)
}

// Update merges the patch into the item with the given id and persists.
// Absent ids are a no-op.
func (q *Queue) Update(id string, patch Patch) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	patch.apply(&q.items[idx])
	q.persistLocked()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(snapshot)
}

// Items returns a copy of the queue in scheduler order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Get returns the item with the given id, if present.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return Item{}, false
	}
	return cloneItem(q.items[idx]), true
}

// ClearEntity removes every item of the given entity type, for hosts that
// discard pending work after a destructive local reset.
func (q *Queue) ClearEntity(entityType string) {
	q.mu.Lock()
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.EntityType == entityType {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed == 0 {
		q.mu.Unlock()
		return
	}
	q.items = kept
	q.persistLocked()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	slog.Info("cleared entity queue", "entity", entityType, "removed", removed)
	q.notify(snapshot)
}

// ClearAll empties the queue. Cumulative completed/failed counters survive
// unless resetCounters is set; pending is always recomputed from the queue
// so it drops to zero either way.
func (q *Queue) ClearAll(resetCounters bool) {
	q.mu.Lock()
	q.items = nil
	if resetCounters {
		q.stats = Stats{}
	}
	q.persistLocked()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	slog.Info("cleared all queues", "reset_counters", resetCounters)
	q.notify(snapshot)
}

// Subscribe registers a change callback and returns its cancel function.
// The callback fires after every mutation with a fresh snapshot.
func (q *Queue) Subscribe(fn ChangeFunc) (cancel func()) {
	q.subMu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	q.subMu.Unlock()

	return func() {
		q.subMu.Lock()
		delete(q.subs, id)
		q.subMu.Unlock()
	}
}

// indexLocked returns the position of id in the queue, or -1.
func (q *Queue) indexLocked(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked mirrors the queue into the durable store. Failures are
// logged and absorbed; the in-memory queue stays authoritative.
func (q *Queue) persistLocked() {
	if err := q.store.Save(q.snapshotLocked()); err != nil {
		slog.Error("queue persist failed", "error", err, "items", len(q.items))
	}
}

func (q *Queue) snapshotLocked() []Item {
	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = cloneItem(it)
	}
	return out
}

func (q *Queue) notify(snapshot []Item) {
	q.subMu.Lock()
	subs := make([]ChangeFunc, 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.subMu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// cloneItem deep-copies the Data map so callers cannot mutate queue state
// behind the mutator API's back.
func cloneItem(it Item) Item {
	if it.Data != nil {
		data := make(map[string]any, len(it.Data))
		for k, v := range it.Data {
			data[k] = v
		}
		it.Data = data
	}
	if it.LastAttempt != nil {
		t := *it.LastAttempt
		it.LastAttempt = &t
	}
	return it
}
