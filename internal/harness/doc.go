// Package harness runs declarative YAML scenarios against the outbox.
//
// A scenario scripts a session: connectivity flips, enqueued mutations,
// explicit drains, and executors that fail a fixed number of times before
// succeeding. The runner wires a real queue, registry, and engine over an
// in-memory slot with deterministic ids and clock, records a trace of what
// happened, and checks the scenario's assertions. Golden files capture the
// full trace plus the final queue for exact regression comparison.
package harness
