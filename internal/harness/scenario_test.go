package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: basic
description: Smoke-load a minimal scenario.
online: true
executors:
  "doc.save":
    failures: 1
    error: "offline"
steps:
  - enqueue: {entity: doc, action: save}
  - drain: true
assertions:
  - type: queue_len
    count: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	assert.True(t, s.Online)
	assert.Len(t, s.Steps, 2)
	require.Contains(t, s.Executors, "doc.save")
	assert.Equal(t, 1, s.Executors["doc.save"].Failures)
}

func TestLoadScenarioRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown field", "name: x\ndescription: d\nstep:\n  - drain: true\n"},
		{"missing name", "description: d\nsteps:\n  - drain: true\n"},
		{"no steps", "name: x\ndescription: d\n"},
		{"empty step", "name: x\ndescription: d\nsteps:\n  - {}\n"},
		{"two directives", "name: x\ndescription: d\nsteps:\n  - drain: true\n    clear: \"*\"\n"},
		{"enqueue without action", "name: x\ndescription: d\nsteps:\n  - enqueue: {entity: doc}\n"},
		{"bad priority", "name: x\ndescription: d\nsteps:\n  - enqueue: {entity: doc, action: save, priority: urgent}\n"},
		{"bad assertion type", "name: x\ndescription: d\nsteps:\n  - drain: true\nassertions:\n  - type: nonsense\n"},
		{"stats assertion without fields", "name: x\ndescription: d\nsteps:\n  - drain: true\nassertions:\n  - type: stats\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tc.src))
			require.Error(t, err)
		})
	}
}
