package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/registry"
)

// DefaultMaxAttempts is the retry budget: total processing attempts an item
// gets before it is dropped. The original client allowed five attempts.
const DefaultMaxAttempts = 5

// DefaultExecutorTimeout bounds one executor call. The original imposed no
// bound, which let a hung call stall the whole cycle indefinitely; a bounded
// call that times out is recorded as an ordinary per-item failure instead.
const DefaultExecutorTimeout = 30 * time.Second

// Engine wires the queue, the dispatch registry, and the connectivity
// monitor into the sync processor.
//
// Construction is explicit dependency injection: the engine never reaches
// for ambient globals. It subscribes to the monitor for its lifetime and
// unsubscribes on Close.
type Engine struct {
	queue       *queue.Queue
	reg         *registry.Registry
	mon         Monitor
	clock       Clock
	maxAttempts int
	execTimeout time.Duration

	// draining is the mutual-exclusion guard: one cycle at a time.
	draining atomic.Bool

	unsubscribe func()

	recheck  time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts sets the retry budget (total attempts before drop).
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithExecutorTimeout bounds a single executor call. Zero disables the
// bound, restoring the original unbounded behavior.
func WithExecutorTimeout(d time.Duration) Option {
	return func(e *Engine) { e.execTimeout = d }
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecheckInterval enables a periodic drain re-attempt while online and
// items remain queued. Zero (the default) disables it.
func WithRecheckInterval(d time.Duration) Option {
	return func(e *Engine) { e.recheck = d }
}

// New creates an engine and subscribes it to the connectivity monitor.
// A transition to online triggers a drain cycle; a transition to offline
// does nothing - an in-flight cycle runs on and fails naturally.
func New(q *queue.Queue, reg *registry.Registry, mon Monitor, opts ...Option) *Engine {
	e := &Engine{
		queue:       q,
		reg:         reg,
		mon:         mon,
		clock:       SystemClock(),
		maxAttempts: DefaultMaxAttempts,
		execTimeout: DefaultExecutorTimeout,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.unsubscribe = mon.Subscribe(func(online bool) {
		if !online {
			slog.Info("connectivity lost, queueing mutations locally")
			return
		}
		slog.Info("connectivity restored, draining queue", "pending", e.queue.Len())
		if err := e.Drain(context.Background()); err != nil {
			slog.Warn("drain after reconnect incomplete", "error", err)
		}
	})

	if e.recheck > 0 {
		e.wg.Add(1)
		go e.recheckLoop()
	}

	return e
}

// Close unsubscribes from the monitor and stops the periodic re-check.
// It does not interrupt an in-flight cycle.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// Queue returns the engine's mutation queue for direct host access
// (pending views, manual enqueue while offline).
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Stats returns the current sync counters.
func (e *Engine) Stats() queue.Stats { return e.queue.Stats() }

// Draining reports whether a cycle currently holds the guard.
func (e *Engine) Draining() bool { return e.draining.Load() }

// Drain runs one cycle if the entry conditions hold. A trigger that
// arrives while another cycle is draining is a no-op.
//
// Returns nil when the cycle fully emptied the queue (or did not run),
// and an error wrapping ErrItemsRemaining when items stay queued.
func (e *Engine) Drain(ctx context.Context) error {
	return e.drain(ctx, false)
}

// ForceDrain runs a cycle even if the guard is set. Intended for manual
// triggers where the host knows the previous cycle is wedged; concurrent
// forced drains race on the queue and are the caller's responsibility.
func (e *Engine) ForceDrain(ctx context.Context) error {
	return e.drain(ctx, true)
}

func (e *Engine) drain(ctx context.Context, force bool) error {
	if force {
		e.draining.Store(true)
	} else if !e.draining.CompareAndSwap(false, true) {
		slog.Debug("drain skipped, cycle already running")
		return nil
	}
	defer e.draining.Store(false)

	if e.reg == nil {
		slog.Debug("drain skipped, no dispatch registry")
		return nil
	}
	if !e.mon.Online() {
		slog.Debug("drain skipped, offline")
		return nil
	}

	items := e.queue.Items()
	if len(items) == 0 {
		return nil
	}

	slog.Info("drain cycle started", "items", len(items))

	completed, failed := 0, 0
	for _, it := range items {
		processing := queue.StatusProcessing
		e.queue.Update(it.ID, queue.Patch{Status: &processing})

		err := e.dispatch(ctx, it)
		if err == nil {
			// Success removes the item entirely; no succeeded status
			// is ever persisted.
			e.queue.Remove(it.ID)
			completed++
			slog.Debug("queued item completed", "id", it.ID, "entity", it.EntityType, "action", it.Action)
			continue
		}

		failed++
		attempts := it.Attempts + 1
		now := e.clock.Now()

		if attempts >= e.maxAttempts {
			drop := &RetryExhaustedError{ItemID: it.ID, Attempts: attempts, LastErr: err}
			slog.Error("queued item dropped, retries exhausted",
				"id", it.ID,
				"entity", it.EntityType,
				"action", it.Action,
				"attempts", attempts,
				"error", drop,
			)
			e.queue.Remove(it.ID)
			continue
		}

		failedStatus := queue.StatusFailed
		msg := err.Error()
		e.queue.Update(it.ID, queue.Patch{
			Attempts:    &attempts,
			Status:      &failedStatus,
			Error:       &msg,
			LastAttempt: &now,
		})
		slog.Warn("queued item failed, will retry",
			"id", it.ID,
			"entity", it.EntityType,
			"action", it.Action,
			"attempts", attempts,
			"error", err,
		)
	}

	now := e.clock.Now()
	e.queue.RecordCycle(completed, failed, now)

	remaining := e.queue.Len()
	slog.Info("drain cycle finished",
		"completed", completed,
		"failed", failed,
		"remaining", remaining,
	)

	if remaining > 0 {
		return fmt.Errorf("%d of %d items still queued: %w", remaining, len(items), ErrItemsRemaining)
	}
	return nil
}

// dispatch looks up and invokes the executor for one item, with the
// configured per-call bound.
func (e *Engine) dispatch(ctx context.Context, it queue.Item) error {
	exec, ok := e.reg.Lookup(it.EntityType, it.Action)
	if !ok {
		return &DispatchNotFoundError{EntityType: it.EntityType, Action: it.Action}
	}

	if e.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.execTimeout)
		defer cancel()
	}

	if err := exec(ctx, it.Data); err != nil {
		return &ExecutionError{ItemID: it.ID, Err: err}
	}
	return nil
}

// SyncOrQueue is the single entry point for state-changing actions.
//
// When online it attempts immediate execution; on failure, or while
// offline, the mutation is queued for the next cycle. The returned id is
// empty when the action executed immediately.
func (e *Engine) SyncOrQueue(ctx context.Context, entityType, action string, data map[string]any, priority queue.Priority) (id string, queued bool, err error) {
	if e.mon.Online() {
		if exec, ok := e.reg.Lookup(entityType, action); ok {
			callCtx := ctx
			if e.execTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, e.execTimeout)
				defer cancel()
			}
			execErr := exec(callCtx, data)
			if execErr == nil {
				return "", false, nil
			}
			slog.Warn("immediate execution failed, queueing",
				"entity", entityType,
				"action", action,
				"error", execErr,
			)
		}
	}

	id, err = e.queue.Add(entityType, action, data, priority)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// recheckLoop periodically re-attempts a drain while online and work
// remains. Triggers that land during a running cycle are no-ops via the
// guard, like any other trigger.
func (e *Engine) recheckLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.recheck)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if e.mon.Online() && e.queue.Len() > 0 {
				if err := e.Drain(context.Background()); err != nil {
					slog.Debug("periodic drain incomplete", "error", err)
				}
			}
		}
	}
}
