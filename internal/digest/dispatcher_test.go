package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/runtime"
)

type fakeEventSender struct {
	mu      sync.Mutex
	events  []runtime.Event
	failIDs map[string]bool
}

func (f *fakeEventSender) Send(_ context.Context, event runtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[event.ID] {
		return fmt.Errorf("runtime queue is full")
	}
	f.events = append(f.events, event)
	return nil
}

func runCronTick(t *testing.T, d *Dispatcher) {
	t.Helper()
	rt := runtime.New(runtime.NewMemoryLedger(), 1, discardLogger())
	require.NoError(t, rt.Register(d.Function(1)))
	rt.Start()
	require.NoError(t, rt.Send(context.Background(), runtime.Event{
		ID:   "tick-1",
		Name: core.EventWeeklyCronTick,
	}))
	rt.Stop()
}

func TestDispatcher_FansOutInBatches(t *testing.T) {
	store := newFakeStore()
	for i := range 5 {
		store.allRepos = append(store.allRepos, core.Repository{
			ID:        fmt.Sprintf("repo-%d", i),
			FullName:  fmt.Sprintf("acme/svc-%d", i),
			UserEmail: "owner@acme.dev",
		})
	}

	sender := &fakeEventSender{}
	d := NewDispatcher(store, sender, 2, "fallback@acme.dev", discardLogger())
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	runCronTick(t, d)

	require.Len(t, sender.events, 5)
	week := core.WeekKeyOf(now).String()
	for i, evt := range sender.events {
		assert.Equal(t, core.EventWeeklySummary, evt.Name)
		assert.Equal(t, fmt.Sprintf("weekly-repo-%d-%s", i, week), evt.ID)

		var payload core.WeeklySummaryRequested
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		assert.Equal(t, core.TriggeredByCron, payload.TriggeredBy)
		assert.Equal(t, "owner@acme.dev", payload.ManagerEmail)
	}
}

func TestDispatcher_FallbackManagerEmail(t *testing.T) {
	store := newFakeStore()
	store.allRepos = []core.Repository{{ID: "repo-1", FullName: "acme/api"}}

	sender := &fakeEventSender{}
	d := NewDispatcher(store, sender, 50, "fallback@acme.dev", discardLogger())

	runCronTick(t, d)

	require.Len(t, sender.events, 1)
	var payload core.WeeklySummaryRequested
	require.NoError(t, json.Unmarshal(sender.events[0].Payload, &payload))
	assert.Equal(t, "fallback@acme.dev", payload.ManagerEmail)
}

func TestDispatcher_EnqueueFailureDoesNotBlockBatch(t *testing.T) {
	store := newFakeStore()
	store.allRepos = []core.Repository{
		{ID: "repo-a", FullName: "acme/a"},
		{ID: "repo-b", FullName: "acme/b"},
	}

	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	week := core.WeekKeyOf(now).String()
	sender := &fakeEventSender{failIDs: map[string]bool{"weekly-repo-a-" + week: true}}
	d := NewDispatcher(store, sender, 50, "", discardLogger())
	d.now = func() time.Time { return now }

	runCronTick(t, d)

	require.Len(t, sender.events, 1)
	assert.Equal(t, "weekly-repo-b-"+week, sender.events[0].ID)
}

func TestDispatcher_NoRepositoriesIsNoOp(t *testing.T) {
	sender := &fakeEventSender{}
	d := NewDispatcher(newFakeStore(), sender, 50, "", discardLogger())

	runCronTick(t, d)

	assert.Empty(t, sender.events)
}
