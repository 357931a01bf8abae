package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verihire/outbox/internal/queue"
)

// Scenario is one declarative outbox session.
type Scenario struct {
	// Name uniquely identifies the scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Online is the connectivity state the session starts in.
	Online bool `yaml:"online"`

	// MaxAttempts overrides the engine retry budget. Zero keeps the default.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Executors scripts the dispatch table, keyed "entityType.action".
	// Enqueueing a pair with no entry exercises the missing-executor path.
	Executors map[string]ExecutorScript `yaml:"executors,omitempty"`

	// Steps is the session script, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, queue, and counters.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExecutorScript describes a scripted executor: it fails its first
// Failures calls with Error, then succeeds.
type ExecutorScript struct {
	Failures int    `yaml:"failures,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// Step is one scripted action. Exactly one directive must be set.
type Step struct {
	// Enqueue adds a mutation to the queue.
	Enqueue *EnqueueStep `yaml:"enqueue,omitempty"`

	// SetOnline flips connectivity. Flipping to online triggers a drain,
	// exactly as a real reconnect does.
	SetOnline *bool `yaml:"set_online,omitempty"`

	// Drain triggers an explicit drain cycle.
	Drain bool `yaml:"drain,omitempty"`

	// Clear empties the queue: a specific entity type, or "*" for all.
	Clear string `yaml:"clear,omitempty"`
}

// EnqueueStep describes one queued mutation.
type EnqueueStep struct {
	Entity   string         `yaml:"entity"`
	Action   string         `yaml:"action"`
	Priority string         `yaml:"priority,omitempty"`
	Data     map[string]any `yaml:"data,omitempty"`
}

// Assertion validates one aspect of the final result.
type Assertion struct {
	// Type selects the check: queue_len, stats, item, attempt_order.
	Type string `yaml:"type"`

	// Count is the expected queue length (queue_len).
	Count int `yaml:"count,omitempty"`

	// Completed and Failed are expected cumulative counters (stats).
	Completed *int `yaml:"completed,omitempty"`
	Failed    *int `yaml:"failed,omitempty"`

	// ID, Status, and Attempts describe one expected queued item (item).
	ID       string `yaml:"id,omitempty"`
	Status   string `yaml:"status,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`

	// Keys is the expected sequence of executor attempts (attempt_order).
	Keys []string `yaml:"keys,omitempty"`
}

// Assertion type constants.
const (
	AssertQueueLen     = "queue_len"
	AssertStats        = "stats"
	AssertItem         = "item"
	AssertAttemptOrder = "attempt_order"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typoed key fails loudly instead of silently not asserting.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Enqueue != nil {
			set++
			if step.Enqueue.Entity == "" || step.Enqueue.Action == "" {
				return fmt.Errorf("steps[%d].enqueue: entity and action are required", i)
			}
			if p := step.Enqueue.Priority; p != "" && !queue.Priority(p).Valid() {
				return fmt.Errorf("steps[%d].enqueue: unknown priority %q", i, p)
			}
		}
		if step.SetOnline != nil {
			set++
		}
		if step.Drain {
			set++
		}
		if step.Clear != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of enqueue, set_online, drain, clear is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertQueueLen:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative", index)
		}
	case AssertStats:
		if a.Completed == nil && a.Failed == nil {
			return fmt.Errorf("assertions[%d]: stats needs completed or failed", index)
		}
	case AssertItem:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for item", index)
		}
	case AssertAttemptOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for attempt_order", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
