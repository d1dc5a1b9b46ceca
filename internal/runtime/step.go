package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Run is the per-invocation handle through which a function executes its
// steps. Steps within one run execute sequentially in the order called.
type Run struct {
	InvocationID string

	ledger Ledger
	logger *slog.Logger
}

// Logger returns the invocation-scoped logger.
func (r *Run) Logger() *slog.Logger {
	return r.logger
}

// Step executes fn exactly once per invocation: if the ledger already
// holds a Done result for (invocation, name), that result is decoded and
// returned without re-executing fn. A failed step records the error and
// re-executes on the next delivery of the same event.
func Step[T any](ctx context.Context, run *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	rec, err := run.ledger.Get(ctx, run.InvocationID, name)
	if err != nil {
		return zero, fmt.Errorf("step %s: reading ledger: %w", name, err)
	}
	if rec != nil && rec.Status == StepDone {
		var v T
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return zero, fmt.Errorf("step %s: decoding memoized result: %w", name, err)
		}
		run.logger.Debug("step replayed from ledger", "step", name)
		return v, nil
	}

	run.logger.Debug("step executing", "step", name)
	v, err := fn(ctx)
	if err != nil {
		putErr := run.ledger.Put(ctx, run.InvocationID, name, &StepRecord{
			Status: StepFailed,
			ErrMsg: err.Error(),
		})
		if putErr != nil {
			run.logger.Error("failed to record step failure", "step", name, "error", putErr)
		}
		return zero, fmt.Errorf("step %s: %w", name, err)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("step %s: encoding result: %w", name, err)
	}
	if err := run.ledger.Put(ctx, run.InvocationID, name, &StepRecord{
		Status: StepDone,
		Value:  raw,
	}); err != nil {
		// The step's side effects are done; failing the invocation here
		// would re-execute them on retry. Log and continue.
		run.logger.Error("failed to memoize step result", "step", name, "error", err)
	}
	return v, nil
}

// Do runs a step that produces no result beyond success or failure.
func Do(ctx context.Context, run *Run, name string, fn func(ctx context.Context) error) error {
	_, err := Step(ctx, run, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
