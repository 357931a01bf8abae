package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verihire/outbox/internal/queue"
)

func sampleItems() []queue.Item {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	last := at.Add(time.Minute)
	return []queue.Item{
		{
			ID:         "1709294400000-abc123def456",
			EntityType: "application",
			Action:     "submit",
			Data:       map[string]any{"position": "backend", "level": "senior"},
			Timestamp:  at,
			Priority:   queue.PriorityHigh,
			Status:     queue.StatusPending,
		},
		{
			ID:          "1709294401000-0011aabbccdd",
			EntityType:  "document",
			Action:      "upload",
			Timestamp:   at.Add(time.Second),
			Priority:    queue.PriorityNormal,
			Attempts:    2,
			Status:      queue.StatusFailed,
			Error:       "gateway timeout",
			LastAttempt: &last,
		},
	}
}

func TestMarshalSlotFormat(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = Marshal(sampleItems())
	require.NoError(t, err)
	// Slot field names are the durable format.
	assert.Contains(t, string(data), `"entityType": "application"`)
	assert.Contains(t, string(data), `"lastAttempt"`)
	assert.NotContains(t, string(data), "\"data\": null")

	// save(load()) is byte-stable.
	items, err := Unmarshal(data)
	require.NoError(t, err)
	again, err := Marshal(items)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

// TestMarshalGolden pins the durable slot format. A diff here means a slot
// migration, not a test update.
func TestMarshalGolden(t *testing.T) {
	data, err := Marshal(sampleItems())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "slot", data)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	st, err := NewFileStore(path)
	require.NoError(t, err)

	// Missing file is a first run, not an error.
	items, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)

	want := sampleItems()
	require.NoError(t, st.Save(want))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second store over the same path sees the same slot.
	st2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err = st2.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreCorruptSlotIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	st, err := NewFileStore(path)
	require.NoError(t, err)

	// Corruption is absorbed, never surfaced.
	items, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryStoreCountsSaves(t *testing.T) {
	st := NewMemoryStore()
	items, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, st.Save(sampleItems()))
	require.NoError(t, st.Save(nil))
	assert.Equal(t, 2, st.Saves())

	items, err = st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	st, err := OpenSQLite(path, "")
	require.NoError(t, err)

	items, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)

	want := sampleItems()
	require.NoError(t, st.Save(want))
	require.NoError(t, st.Save(want)) // upsert, not insert
	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, st.Close())

	// Survives reopen; schema application is idempotent.
	st2, err := OpenSQLite(path, "")
	require.NoError(t, err)
	defer st2.Close()
	got, err = st2.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteStoreSlotsAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	a, err := OpenSQLite(path, "alpha")
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(path, "beta")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Save(sampleItems()))

	got, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = a.Load()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
