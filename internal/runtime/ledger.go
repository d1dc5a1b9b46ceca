package runtime

import (
	"context"
	"encoding/json"
	"sync"
)

// StepStatus is the lifecycle state of one memoized step result.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// StepRecord is the ledger entry for one (invocation, step) pair. A Done
// record carries the step's JSON-encoded result; a Failed record carries
// the error message from the last attempt.
type StepRecord struct {
	Status StepStatus
	Value  json.RawMessage
	ErrMsg string
}

// Ledger persists step results keyed by (invocation id, step name) so a
// re-delivered event replays completed steps from their memoized results
// instead of re-executing them.
type Ledger interface {
	Get(ctx context.Context, invocationID, step string) (*StepRecord, error)
	Put(ctx context.Context, invocationID, step string, rec *StepRecord) error
}

// MemoryLedger is an in-process Ledger used in tests and as a fallback
// when no database is configured. Safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]StepRecord
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]StepRecord)}
}

func ledgerKey(invocationID, step string) string {
	return invocationID + "\x00" + step
}

// Get returns the record for the pair, or nil if none exists.
func (m *MemoryLedger) Get(_ context.Context, invocationID, step string) (*StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[ledgerKey(invocationID, step)]; ok {
		out := rec
		return &out, nil
	}
	return nil, nil
}

// Put stores or replaces the record for the pair.
func (m *MemoryLedger) Put(_ context.Context, invocationID, step string, rec *StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ledgerKey(invocationID, step)] = *rec
	return nil
}
