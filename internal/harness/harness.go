package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verihire/outbox/internal/engine"
	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/registry"
	"github.com/verihire/outbox/internal/store"
)

// TraceEvent is one recorded occurrence during a scenario run. Timestamps
// are deliberately absent: the trace must be byte-stable for golden files.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// enqueue
	ID       string `json:"id,omitempty"`
	Priority string `json:"priority,omitempty"`

	// enqueue, attempt, clear
	Key string `json:"key,omitempty"`

	// connectivity
	Online *bool `json:"online,omitempty"`

	// attempt
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`

	// drain
	Drain *DrainSummary `json:"drain,omitempty"`
}

// DrainSummary is the outcome of one explicit drain step.
type DrainSummary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Trace event type constants.
const (
	EventEnqueue      = "enqueue"
	EventConnectivity = "connectivity"
	EventAttempt      = "attempt"
	EventDrain        = "drain"
	EventClear        = "clear"
)

// Result is what a scenario run produced: the trace, the final queue, and
// the session counters.
type Result struct {
	Trace    []TraceEvent
	Items    []queue.Item
	Stats    queue.Stats
	Attempts []string // dispatch keys in executor call order
}

type recorder struct {
	seq    int
	events []TraceEvent
}

func (r *recorder) record(ev TraceEvent) {
	ev.Seq = r.seq
	r.seq++
	r.events = append(r.events, ev)
}

// Run executes a scenario over a fresh in-memory outbox with deterministic
// ids ("item-001", ...) and a stepped clock.
func Run(s *Scenario) (*Result, error) {
	rec := &recorder{}

	clock := engine.NewFixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	n := 0
	q := queue.New(store.NewMemoryStore(),
		queue.WithNow(clock.Now),
		queue.WithIDGenerator(func(time.Time) string {
			n++
			return fmt.Sprintf("item-%03d", n)
		}),
	)

	reg := registry.New()
	for key, script := range s.Executors {
		entity, action, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("executor key %q: want \"entityType.action\"", key)
		}
		if err := reg.Register(entity, action, scripted(rec, key, script)); err != nil {
			return nil, err
		}
	}

	mon := engine.NewSignalMonitor(s.Online)

	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithExecutorTimeout(0),
	}
	if s.MaxAttempts > 0 {
		opts = append(opts, engine.WithMaxAttempts(s.MaxAttempts))
	}
	eng := engine.New(q, reg, mon, opts...)
	defer eng.Close()

	ctx := context.Background()
	for i, step := range s.Steps {
		if err := runStep(ctx, rec, q, eng, mon, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	result := &Result{
		Trace: rec.events,
		Items: q.Items(),
		Stats: eng.Stats(),
	}
	for _, ev := range rec.events {
		if ev.Type == EventAttempt {
			result.Attempts = append(result.Attempts, ev.Key)
		}
	}
	return result, nil
}

// scripted builds an executor that fails its first script.Failures calls,
// recording every attempt in the trace.
func scripted(rec *recorder, key string, script ExecutorScript) registry.Executor {
	msg := script.Error
	if msg == "" {
		msg = "injected failure"
	}
	remaining := script.Failures

	return func(ctx context.Context, data map[string]any) error {
		if remaining > 0 {
			remaining--
			rec.record(TraceEvent{Type: EventAttempt, Key: key, Outcome: "error", Error: msg})
			return errors.New(msg)
		}
		rec.record(TraceEvent{Type: EventAttempt, Key: key, Outcome: "ok"})
		return nil
	}
}

func runStep(ctx context.Context, rec *recorder, q *queue.Queue, eng *engine.Engine, mon *engine.SignalMonitor, step Step) error {
	switch {
	case step.Enqueue != nil:
		e := step.Enqueue
		pr := queue.Priority(e.Priority)
		if !pr.Valid() {
			pr = queue.PriorityNormal
		}
		id, err := q.Add(e.Entity, e.Action, e.Data, pr)
		if err != nil {
			return err
		}
		rec.record(TraceEvent{
			Type:     EventEnqueue,
			ID:       id,
			Key:      registry.Key(e.Entity, e.Action),
			Priority: string(pr),
		})
		return nil

	case step.SetOnline != nil:
		online := *step.SetOnline
		rec.record(TraceEvent{Type: EventConnectivity, Online: &online})
		// SetOnline delivers the transition synchronously, so a reconnect
		// drain completes before the next step runs.
		mon.SetOnline(online)
		return nil

	case step.Drain:
		before := eng.Stats()
		if err := eng.Drain(ctx); err != nil && !errors.Is(err, engine.ErrItemsRemaining) {
			return err
		}
		after := eng.Stats()
		rec.record(TraceEvent{Type: EventDrain, Drain: &DrainSummary{
			Completed: after.TotalCompleted - before.TotalCompleted,
			Failed:    after.TotalFailed - before.TotalFailed,
			Remaining: after.TotalPending,
		}})
		return nil

	case step.Clear != "":
		if step.Clear == "*" {
			q.ClearAll(false)
		} else {
			q.ClearEntity(step.Clear)
		}
		rec.record(TraceEvent{Type: EventClear, Key: step.Clear})
		return nil
	}
	return fmt.Errorf("empty step")
}
