package queue_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/store"
)

// brokenStore fails on demand, to verify storage failures are absorbed.
type brokenStore struct {
	loadErr error
	saveErr error
	items   []queue.Item
}

func (s *brokenStore) Load() ([]queue.Item, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.items, nil
}

func (s *brokenStore) Save(items []queue.Item) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items = items
	return nil
}

func newTestQueue(t *testing.T, st queue.Store) *queue.Queue {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return queue.New(st,
		queue.WithNow(func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Second)
		}),
		queue.WithIDGenerator(func(time.Time) string {
			return fmt.Sprintf("item-%03d", n)
		}),
	)
}

func TestAddOrdersByPriorityThenFIFO(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())

	for i, p := range []queue.Priority{queue.PriorityNormal, queue.PriorityLow, queue.PriorityHigh, queue.PriorityNormal} {
		_, err := q.Add("doc", "save", map[string]any{"n": i}, p)
		require.NoError(t, err)
	}

	items := q.Items()
	require.Len(t, items, 4)
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.ID
	}
	// high, then normals in arrival order, then low.
	assert.Equal(t, []string{"item-003", "item-001", "item-004", "item-002"}, got)
}

func TestAddValidation(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())

	_, err := q.Add("", "save", nil, queue.PriorityNormal)
	require.Error(t, err)
	_, err = q.Add("doc", "", nil, queue.PriorityNormal)
	require.Error(t, err)

	// Unknown priority falls back to normal instead of failing.
	id, err := q.Add("doc", "save", nil, queue.Priority("urgent"))
	require.NoError(t, err)
	it, ok := q.Get(id)
	require.True(t, ok)
	assert.Equal(t, queue.PriorityNormal, it.Priority)
	assert.Equal(t, queue.StatusPending, it.Status)
}

func TestEveryMutationPersists(t *testing.T) {
	st := store.NewMemoryStore()
	q := newTestQueue(t, st)

	id, err := q.Add("doc", "save", nil, queue.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Saves())

	failed := queue.StatusFailed
	q.Update(id, queue.Patch{Status: &failed})
	assert.Equal(t, 2, st.Saves())

	q.Remove(id)
	assert.Equal(t, 3, st.Saves())

	// No-ops on absent ids do not write.
	q.Remove("nope")
	q.Update("nope", queue.Patch{Status: &failed})
	assert.Equal(t, 3, st.Saves())

	persisted, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestNewReloadsPersistedQueue(t *testing.T) {
	st := store.NewMemoryStore()
	q := newTestQueue(t, st)
	_, err := q.Add("doc", "save", map[string]any{"k": "v"}, queue.PriorityLow)
	require.NoError(t, err)
	_, err = q.Add("note", "create", nil, queue.PriorityHigh)
	require.NoError(t, err)

	// A second session over the same slot sees the same queue, sorted.
	q2 := queue.New(st)
	items := q2.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "note", items[0].EntityType)
	assert.Equal(t, "doc", items[1].EntityType)
	assert.Equal(t, map[string]any{"k": "v"}, items[1].Data)
}

func TestStorageFailuresAreAbsorbed(t *testing.T) {
	st := &brokenStore{loadErr: errors.New("disk gone")}
	q := queue.New(st)
	assert.Equal(t, 0, q.Len())

	st.loadErr = nil
	st.saveErr = errors.New("disk full")
	id, err := q.Add("doc", "save", nil, queue.PriorityNormal)
	require.NoError(t, err) // enqueue must not fail on persist errors
	_, ok := q.Get(id)
	assert.True(t, ok)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())

	var lens []int
	cancel := q.Subscribe(func(items []queue.Item) { lens = append(lens, len(items)) })

	id, err := q.Add("doc", "save", nil, queue.PriorityNormal)
	require.NoError(t, err)
	q.Remove(id)
	assert.Equal(t, []int{1, 0}, lens)

	cancel()
	_, err = q.Add("doc", "save", nil, queue.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, lens)
}

func TestClearEntityAndClearAll(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())
	for _, e := range []string{"doc", "note", "doc"} {
		_, err := q.Add(e, "save", nil, queue.PriorityNormal)
		require.NoError(t, err)
	}

	q.ClearEntity("doc")
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.HasPending("doc"))
	assert.True(t, q.HasPending("note"))

	q.RecordCycle(4, 2, time.Now())
	q.ClearAll(false)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 4, q.Stats().TotalCompleted)

	q.ClearAll(true)
	assert.Equal(t, 0, q.Stats().TotalCompleted)
	assert.Equal(t, 0, q.Stats().TotalFailed)
}

func TestStatsRecomputesPending(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())
	_, err := q.Add("doc", "save", nil, queue.PriorityNormal)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	q.RecordCycle(2, 1, at)

	s := q.Stats()
	assert.Equal(t, 1, s.TotalPending)
	assert.Equal(t, 2, s.TotalCompleted)
	assert.Equal(t, 1, s.TotalFailed)
	require.NotNil(t, s.LastSyncTime)
	assert.Equal(t, at, *s.LastSyncTime)
}

func TestEntityIndexAndPendingItems(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())
	_, err := q.Add("doc", "save", nil, queue.PriorityLow)
	require.NoError(t, err)
	_, err = q.Add("doc", "upload", nil, queue.PriorityHigh)
	require.NoError(t, err)
	_, err = q.Add("note", "create", nil, queue.PriorityNormal)
	require.NoError(t, err)

	idx := q.EntityIndex()
	require.Len(t, idx, 2)
	require.Len(t, idx["doc"], 2)
	// Groups preserve queue order: the high upload before the low save.
	assert.Equal(t, "upload", idx["doc"][0].Action)

	pending := q.PendingItems("doc")
	require.Len(t, pending, 2)
	assert.Equal(t, "upload", pending[0].Action)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStore())
	id, err := q.Add("doc", "save", map[string]any{"k": "v"}, queue.PriorityNormal)
	require.NoError(t, err)

	items := q.Items()
	items[0].Data["k"] = "mutated"

	it, ok := q.Get(id)
	require.True(t, ok)
	assert.Equal(t, "v", it.Data["k"])
}
