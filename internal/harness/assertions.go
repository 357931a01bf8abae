package harness

import (
	"fmt"

	"github.com/verihire/outbox/internal/queue"
)

// CheckAssertions validates every assertion in the scenario against the
// run result. All failures are collected, not just the first.
func CheckAssertions(s *Scenario, result *Result) []error {
	var errs []error
	for i, a := range s.Assertions {
		if err := checkAssertion(&a, result); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err))
		}
	}
	return errs
}

func checkAssertion(a *Assertion, result *Result) error {
	switch a.Type {
	case AssertQueueLen:
		if got := len(result.Items); got != a.Count {
			return fmt.Errorf("queue has %d items, want %d", got, a.Count)
		}

	case AssertStats:
		if a.Completed != nil && result.Stats.TotalCompleted != *a.Completed {
			return fmt.Errorf("totalCompleted is %d, want %d", result.Stats.TotalCompleted, *a.Completed)
		}
		if a.Failed != nil && result.Stats.TotalFailed != *a.Failed {
			return fmt.Errorf("totalFailed is %d, want %d", result.Stats.TotalFailed, *a.Failed)
		}

	case AssertItem:
		item, ok := findItem(result.Items, a.ID)
		if !ok {
			return fmt.Errorf("item %s not in queue", a.ID)
		}
		if a.Status != "" && item.Status != queue.Status(a.Status) {
			return fmt.Errorf("item %s status is %s, want %s", a.ID, item.Status, a.Status)
		}
		if a.Attempts != 0 && item.Attempts != a.Attempts {
			return fmt.Errorf("item %s attempts is %d, want %d", a.ID, item.Attempts, a.Attempts)
		}

	case AssertAttemptOrder:
		if len(result.Attempts) != len(a.Keys) {
			return fmt.Errorf("recorded %d attempts %v, want %d %v",
				len(result.Attempts), result.Attempts, len(a.Keys), a.Keys)
		}
		for i, key := range a.Keys {
			if result.Attempts[i] != key {
				return fmt.Errorf("attempt %d was %s, want %s (full order %v)", i, result.Attempts[i], key, result.Attempts)
			}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func findItem(items []queue.Item, id string) (queue.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return queue.Item{}, false
}
