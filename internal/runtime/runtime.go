// Package runtime is the execution substrate for the pipelines: it runs
// named functions as sequences of memoized steps, retries failed
// invocations up to a per-function budget, and caps how many invocations
// of a function run at once. Event delivery is at-least-once; consumers
// rely on step memoization to keep re-delivery from duplicating work.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one triggering message delivered to the runtime. ID is the
// idempotency key: re-delivery of the same ID replays memoized steps.
type Event struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// HandlerFunc is the body of a registered function. It receives a Run
// through which it executes its steps, and returns the invocation's
// result payload.
type HandlerFunc func(ctx context.Context, run *Run, event Event) (any, error)

// Function declares one runnable unit: which event triggers it, how many
// times a failed invocation is retried, and how many invocations may run
// concurrently (0 means unbounded).
type Function struct {
	Name        string
	Event       string
	Retries     int
	Concurrency int
	Handler     HandlerFunc
}

// registered pairs a Function with its concurrency semaphore.
type registered struct {
	Function
	sem chan struct{}
}

// delivery is one queued attempt at invoking a function for an event.
type delivery struct {
	fn      *registered
	event   Event
	attempt int
}

// Runtime dispatches events to registered functions over a worker pool.
type Runtime struct {
	ledger     Ledger
	logger     *slog.Logger
	maxWorkers int

	mu        sync.RWMutex
	functions map[string][]*registered // keyed by event name

	queue   chan delivery
	wg      sync.WaitGroup
	pending sync.WaitGroup // deliveries queued or scheduled for retry
	started bool
}

// New creates a runtime backed by the given step ledger. If maxWorkers
// is not positive it defaults to 1, mirroring the job dispatcher this
// runtime grew out of.
func New(ledger Ledger, maxWorkers int, logger *slog.Logger) *Runtime {
	if ledger == nil {
		panic("ledger cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Runtime{
		ledger:     ledger,
		logger:     logger,
		maxWorkers: maxWorkers,
		functions:  make(map[string][]*registered),
		queue:      make(chan delivery, 100),
	}
}

// Register adds a function. Must be called before Start.
func (r *Runtime) Register(fn Function) error {
	if fn.Name == "" || fn.Event == "" || fn.Handler == nil {
		return fmt.Errorf("function needs a name, a trigger event, and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("cannot register %q after the runtime has started", fn.Name)
	}
	reg := &registered{Function: fn}
	if fn.Concurrency > 0 {
		reg.sem = make(chan struct{}, fn.Concurrency)
	}
	r.functions[fn.Event] = append(r.functions[fn.Event], reg)
	return nil
}

// Start launches the worker pool.
func (r *Runtime) Start() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	for i := range r.maxWorkers {
		r.wg.Add(1)
		go r.startWorker(i)
	}
}

func (r *Runtime) startWorker(workerID int) {
	defer r.wg.Done()
	r.logger.Info("starting runtime worker", "id", workerID)

	for d := range r.queue {
		r.process(d)
	}

	r.logger.Info("shutting down runtime worker", "id", workerID)
}

// Send queues the event for every function registered against its name.
// An empty event ID gets a fresh one; callers that want idempotent
// re-delivery supply their own. Returns an error when the queue is full,
// providing backpressure to the caller.
func (r *Runtime) Send(_ context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	r.mu.RLock()
	fns := r.functions[event.Name]
	r.mu.RUnlock()

	if len(fns) == 0 {
		r.logger.Debug("no function registered for event", "event", event.Name)
		return nil
	}

	for _, fn := range fns {
		r.pending.Add(1)
		select {
		case r.queue <- delivery{fn: fn, event: event, attempt: 1}:
		default:
			r.pending.Done()
			return fmt.Errorf("runtime queue is full, cannot accept event %s", event.Name)
		}
	}
	return nil
}

// process runs one delivery, holding the function's concurrency slot for
// the duration of the invocation.
func (r *Runtime) process(d delivery) {
	defer r.pending.Done()

	if d.fn.sem != nil {
		d.fn.sem <- struct{}{}
		defer func() { <-d.fn.sem }()
	}

	invocationID := d.fn.Name + ":" + d.event.ID
	run := &Run{
		InvocationID: invocationID,
		ledger:       r.ledger,
		logger:       r.logger.With("function", d.fn.Name, "invocation", invocationID),
	}

	r.logger.Info("invoking function",
		"function", d.fn.Name,
		"event", d.event.Name,
		"attempt", d.attempt,
	)

	result, err := d.fn.Handler(context.Background(), run, d.event)
	if err == nil {
		r.logger.Info("function completed", "function", d.fn.Name, "result", logValue(result))
		return
	}

	if IsFatal(err) || d.attempt > d.fn.Retries {
		r.logger.Error("function failed, giving up",
			"function", d.fn.Name,
			"attempt", d.attempt,
			"fatal", IsFatal(err),
			"error", err,
		)
		return
	}

	r.logger.Warn("function failed, scheduling retry",
		"function", d.fn.Name,
		"attempt", d.attempt,
		"error", err,
	)
	r.requeue(delivery{fn: d.fn, event: d.event, attempt: d.attempt + 1})
}

// requeue schedules a retry with linear backoff. The retry bypasses the
// queue's backpressure check: a retry must not be lost to a full queue.
func (r *Runtime) requeue(d delivery) {
	r.pending.Add(1)
	backoff := time.Duration(d.attempt-1) * time.Second
	time.AfterFunc(backoff, func() {
		r.queue <- d
	})
}

// Stop drains in-flight and pending deliveries, then stops the workers.
func (r *Runtime) Stop() {
	r.logger.Info("stopping runtime, waiting for invocations to finish")
	r.pending.Wait()
	close(r.queue)
	r.wg.Wait()
	r.logger.Info("runtime stopped")
}

func logValue(result any) string {
	if result == nil {
		return ""
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}
