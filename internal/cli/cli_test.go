package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/store"
)

type seedItem struct{ entity, action string }

// seedSlot writes a slot file with queued items and returns a config file
// pointing at it.
func seedSlot(t *testing.T, items ...seedItem) (configPath, slotPath string) {
	t.Helper()
	dir := t.TempDir()
	slotPath = filepath.Join(dir, "queue.json")

	st, err := store.NewFileStore(slotPath)
	require.NoError(t, err)
	q := queue.New(st)
	for _, it := range items {
		_, err := q.Add(it.entity, it.action, map[string]any{"k": "v"}, queue.PriorityNormal)
		require.NoError(t, err)
	}

	configPath = filepath.Join(dir, "outbox.cue")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(
		"store: kind: %q\nstore: path: %q\n", "file", slotPath)), 0o644))
	return configPath, slotPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "--format", "xml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestStatusAndItems(t *testing.T) {
	cfg, _ := seedSlot(t,
		seedItem{"application", "submit"},
		seedItem{"profile", "update"},
		seedItem{"application", "withdraw"},
	)

	out, err := runCLI(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 3")
	assert.Contains(t, out, "application")

	out, err = runCLI(t, "--config", cfg, "--format", "json", "items")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   []ItemView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "application.submit", resp.Data[0].Key)

	out, err = runCLI(t, "--config", cfg, "items", "--entity", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "profile.update")
	assert.NotContains(t, out, "application.submit")
}

func TestClear(t *testing.T) {
	cfg, slotPath := seedSlot(t,
		seedItem{"application", "submit"},
		seedItem{"profile", "update"},
	)

	_, err := runCLI(t, "--config", cfg, "clear")
	require.Error(t, err) // needs --entity or --all

	out, err := runCLI(t, "--config", cfg, "clear", "--entity", "application")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1")

	// The slot on disk reflects the clear.
	st, err := store.NewFileStore(slotPath)
	require.NoError(t, err)
	items, err := st.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "profile", items[0].EntityType)

	out, err = runCLI(t, "--config", cfg, "clear", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1")
}

func TestDrainPushesToEndpoints(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	slotPath := filepath.Join(dir, "queue.json")
	st, err := store.NewFileStore(slotPath)
	require.NoError(t, err)
	q := queue.New(st)
	_, err = q.Add("application", "submit", map[string]any{"position": "sre"}, queue.PriorityNormal)
	require.NoError(t, err)
	_, err = q.Add("application", "submit", nil, queue.PriorityHigh)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "outbox.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
store: kind: "file"
store: path: %q
actions: "application.submit": endpoint: %q
`, slotPath, srv.URL)), 0o644))

	out, err := runCLI(t, "--config", cfgPath, "drain")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed: 2")
	assert.Equal(t, 2, hits)

	// Slot is empty afterwards.
	items, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDrainExitsNonZeroWhenItemsRemain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	slotPath := filepath.Join(dir, "queue.json")
	st, err := store.NewFileStore(slotPath)
	require.NoError(t, err)
	q := queue.New(st)
	_, err = q.Add("application", "submit", nil, queue.PriorityNormal)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "outbox.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
store: kind: "file"
store: path: %q
actions: "application.submit": endpoint: %q
`, slotPath, srv.URL)), 0o644))

	_, err = runCLI(t, "--config", cfgPath, "drain")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The item survives with its attempt recorded.
	items, err := st.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Equal(t, queue.StatusFailed, items[0].Status)
}

func TestDrainRequiresActionTable(t *testing.T) {
	cfg, _ := seedSlot(t, seedItem{"application", "submit"})
	_, err := runCLI(t, "--config", cfg, "drain")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
