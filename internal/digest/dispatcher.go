package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/runtime"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// DispatcherName identifies the cron fan-out function.
const DispatcherName = "schedule-repo-summaries"

// EventSender queues events for the runtime. *runtime.Runtime satisfies it.
type EventSender interface {
	Send(ctx context.Context, event runtime.Event) error
}

// Dispatcher fans one cron tick out into per-repository summary events,
// in bounded batches so one tick cannot flood the queue.
type Dispatcher struct {
	store     storage.Store
	sender    EventSender
	batchSize int
	defaultCC string
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher creates the cron fan-out. batchSize values below 1
// default to 50.
func NewDispatcher(store storage.Store, sender EventSender, batchSize int, defaultCC string, logger *slog.Logger) *Dispatcher {
	if store == nil || sender == nil {
		panic("dispatcher requires a store and an event sender")
	}
	if batchSize < 1 {
		batchSize = 50
	}
	return &Dispatcher{
		store:     store,
		sender:    sender,
		batchSize: batchSize,
		defaultCC: defaultCC,
		now:       time.Now,
		logger:    logger,
	}
}

// Function declares the runtime function triggered by repo.weekly.cron.
func (d *Dispatcher) Function(retries int) runtime.Function {
	return runtime.Function{
		Name:    DispatcherName,
		Event:   core.EventWeeklyCronTick,
		Retries: retries,
		Handler: d.handle,
	}
}

// dispatchOutcome is the memoized result of one fan-out batch.
type dispatchOutcome struct {
	Dispatched int      `json:"dispatched"`
	Failed     []string `json:"failed,omitempty"`
}

func (d *Dispatcher) handle(ctx context.Context, run *runtime.Run, _ runtime.Event) (any, error) {
	repos, err := runtime.Step(ctx, run, "list-repositories", func(ctx context.Context) ([]core.Repository, error) {
		return d.store.ListRepositoriesWithClients(ctx)
	})
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		d.logger.Info("no repositories with digest clients, nothing to dispatch")
		return &dispatchOutcome{}, nil
	}

	week := core.WeekKeyOf(d.now()).String()
	total := &dispatchOutcome{}

	for start := 0; start < len(repos); start += d.batchSize {
		end := min(start+d.batchSize, len(repos))
		batch := repos[start:end]

		outcome, err := runtime.Step(ctx, run, fmt.Sprintf("send-batch-%d", start/d.batchSize),
			func(ctx context.Context) (*dispatchOutcome, error) {
				return d.sendBatch(ctx, batch, week), nil
			})
		if err != nil {
			return nil, err
		}
		total.Dispatched += outcome.Dispatched
		total.Failed = append(total.Failed, outcome.Failed...)
	}

	d.logger.Info("weekly digest fan-out finished",
		"repositories", len(repos),
		"dispatched", total.Dispatched,
		"failed", len(total.Failed),
	)
	return total, nil
}

// sendBatch queues one batch of summary events. A failed enqueue is
// recorded per repository; the rest of the batch still goes out.
func (d *Dispatcher) sendBatch(ctx context.Context, repos []core.Repository, week string) *dispatchOutcome {
	outcome := &dispatchOutcome{}
	for _, repo := range repos {
		managerEmail := repo.UserEmail
		if managerEmail == "" {
			managerEmail = d.defaultCC
		}

		payload, err := json.Marshal(core.WeeklySummaryRequested{
			RepositoryID: repo.ID,
			TriggeredBy:  core.TriggeredByCron,
			ManagerEmail: managerEmail,
		})
		if err != nil {
			outcome.Failed = append(outcome.Failed, repo.ID)
			continue
		}

		// Deterministic event id: a re-run of the same cron week yields
		// the same invocation ids downstream, so completed sends replay
		// from the ledger instead of repeating.
		err = d.sender.Send(ctx, runtime.Event{
			ID:      fmt.Sprintf("weekly-%s-%s", repo.ID, week),
			Name:    core.EventWeeklySummary,
			Payload: payload,
		})
		if err != nil {
			d.logger.Error("failed to queue weekly summary", "repository", repo.ID, "error", err)
			outcome.Failed = append(outcome.Failed, repo.ID)
			continue
		}
		outcome.Dispatched++
	}
	return outcome
}
