package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/verihire/outbox/internal/registry"
)

// Snapshot is the golden-file view of a finished run: the trace, the final
// queue, and the counters. No timestamps, no wall-clock anything.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
	Queue    []QueueEntry `json:"queue"`
	Stats    StatsView    `json:"stats"`
}

// QueueEntry is the stable view of one queued item.
type QueueEntry struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// StatsView is the stable view of the session counters.
type StatsView struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// BuildSnapshot reduces a run result to its golden-file form.
func BuildSnapshot(s *Scenario, result *Result) Snapshot {
	snap := Snapshot{
		Scenario: s.Name,
		Trace:    result.Trace,
		Queue:    []QueueEntry{},
		Stats: StatsView{
			Completed: result.Stats.TotalCompleted,
			Failed:    result.Stats.TotalFailed,
			Pending:   result.Stats.TotalPending,
		},
	}
	if snap.Trace == nil {
		snap.Trace = []TraceEvent{}
	}
	for _, it := range result.Items {
		snap.Queue = append(snap.Queue, QueueEntry{
			ID:       it.ID,
			Key:      registry.Key(it.EntityType, it.Action),
			Priority: string(it.Priority),
			Status:   string(it.Status),
			Attempts: it.Attempts,
			Error:    it.Error,
		})
	}
	return snap
}

// RunWithGolden executes a scenario, checks its assertions, and compares
// the snapshot against testdata/golden/{name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("running scenario %s: %v", s.Name, err)
	}
	for _, aerr := range CheckAssertions(s, result) {
		t.Error(aerr)
	}

	data, err := json.MarshalIndent(BuildSnapshot(s, result), "", "  ")
	if err != nil {
		t.Fatalf("marshaling snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
}
