package queue

import "time"

// Stats holds the running sync counters for the session.
//
// TotalPending is always recomputed from the live queue; TotalCompleted and
// TotalFailed accumulate across drain cycles and only reset on an explicit
// clear-all with counter reset. Stats are session state and are never
// persisted - only the queue itself survives a restart.
type Stats struct {
	TotalPending   int        `json:"totalPending"`
	TotalCompleted int        `json:"totalCompleted"`
	TotalFailed    int        `json:"totalFailed"`
	LastSyncTime   *time.Time `json:"lastSyncTime,omitempty"`
}

// RecordCycle folds one drain cycle's outcome into the cumulative counters
// and stamps the sync time.
func (q *Queue) RecordCycle(completed, failed int, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stats.TotalCompleted += completed
	q.stats.TotalFailed += failed
	t := at
	q.stats.LastSyncTime = &t
}

// Stats returns a snapshot of the counters with pending recomputed from
// the current queue length.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.TotalPending = len(q.items)
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		s.LastSyncTime = &t
	}
	return s
}
