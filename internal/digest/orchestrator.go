package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/mail"
	"github.com/reviewloop/reviewloop/internal/runtime"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// OrchestratorName identifies the per-repository summary function.
const OrchestratorName = "repo-weekly-summary"

// recentReviewLimit is how many reviews feed one digest.
const recentReviewLimit = 10

// Orchestrator runs one weekly summary per repository: load the
// repository and its clients, generate one digest, and deliver it to
// every eligible client.
type Orchestrator struct {
	store      storage.Store
	summarizer Summarizer
	sender     mail.Sender
	defaultCC  string
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrchestrator creates the weekly summary orchestrator. defaultCC is
// the fallback CC address for cron runs of repositories without an
// owner email.
func NewOrchestrator(store storage.Store, summarizer Summarizer, sender mail.Sender, defaultCC string, logger *slog.Logger) *Orchestrator {
	if store == nil || summarizer == nil || sender == nil {
		panic("digest orchestrator requires all collaborators")
	}
	return &Orchestrator{
		store:      store,
		summarizer: summarizer,
		sender:     sender,
		defaultCC:  defaultCC,
		now:        time.Now,
		logger:     logger,
	}
}

// Function declares the runtime function triggered by repo.weekly.summary.
func (o *Orchestrator) Function(retries int) runtime.Function {
	return runtime.Function{
		Name:    OrchestratorName,
		Event:   core.EventWeeklySummary,
		Retries: retries,
		Handler: o.handle,
	}
}

// fetchResult is the memoized outcome of the fetch-repository step.
type fetchResult struct {
	Skip     string               `json:"skip,omitempty"`
	Repo     *core.Repository     `json:"repo,omitempty"`
	Mappings []core.ClientMapping `json:"mappings,omitempty"`
	Reviews  []core.Review        `json:"reviews,omitempty"`
}

func (o *Orchestrator) handle(ctx context.Context, run *runtime.Run, event runtime.Event) (any, error) {
	var payload core.WeeklySummaryRequested
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, runtime.Fatal(fmt.Errorf("decoding summary payload: %w", err))
	}
	if err := payload.Validate(); err != nil {
		return nil, runtime.Fatal(err)
	}

	fetched, err := runtime.Step(ctx, run, "fetch-repository", func(ctx context.Context) (*fetchResult, error) {
		repo, err := o.store.GetRepository(ctx, payload.RepositoryID)
		if errors.Is(err, core.ErrRepositoryNotFound) {
			return &fetchResult{Skip: core.SkipReasonRepositoryNotFound}, nil
		}
		if err != nil {
			return nil, err
		}

		mappings, err := o.store.ListClientMappings(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
		if len(mappings) == 0 {
			return &fetchResult{Skip: core.SkipReasonNoClients, Repo: repo}, nil
		}

		reviews, err := o.store.RecentReviews(ctx, repo.ID, recentReviewLimit)
		if err != nil {
			return nil, err
		}
		return &fetchResult{Repo: repo, Mappings: mappings, Reviews: reviews}, nil
	})
	if err != nil {
		return nil, err
	}

	if fetched.Skip != "" {
		o.logger.Info("weekly summary skipped", "repository", payload.RepositoryID, "reason", fetched.Skip)
		result := &core.DigestResult{
			Reason:       fetched.Skip,
			RepositoryID: payload.RepositoryID,
			TriggeredBy:  payload.TriggeredBy,
		}
		if fetched.Repo != nil {
			result.RepositoryName = fetched.Repo.FullName
		}
		return result, nil
	}
	repo := fetched.Repo

	summary, err := runtime.Step(ctx, run, "generate-summary", func(ctx context.Context) (*core.WeeklyDigest, error) {
		return o.summarizer.Summarize(ctx, repo.FullName, fetched.Reviews)
	})
	if err != nil {
		// A digest that failed validation will fail identically on every
		// attempt; only transient generation errors are worth retrying.
		if errors.Is(err, core.ErrMalformedDigest) {
			return nil, runtime.Fatal(fmt.Errorf("%s: %w", core.SkipReasonSummaryFailed, err))
		}
		return nil, err
	}

	managerCC := o.resolveCC(payload, repo)
	html, err := RenderEmail(repo.FullName, summary)
	if err != nil {
		return nil, runtime.Fatal(err)
	}

	result := &core.DigestResult{
		RepositoryID:   repo.ID,
		RepositoryName: repo.FullName,
		TriggeredBy:    payload.TriggeredBy,
		TotalClients:   len(fetched.Mappings),
		ManagerCC:      managerCC,
	}
	currentWeek := core.WeekKeyOf(o.now())

	for _, m := range fetched.Mappings {
		if o.alreadyDeliveredThisWeek(payload.TriggeredBy, m, currentWeek) {
			result.SkippedCount++
			result.SkippedEmails = append(result.SkippedEmails, m.Client.Email)
			o.logger.Info("client already received this week's digest",
				"repository", repo.FullName, "client", m.Client.Email)
			continue
		}

		sendErr := runtime.Do(ctx, run, "email-"+m.ClientID, func(ctx context.Context) error {
			var cc []string
			if managerCC != "" {
				cc = []string{managerCC}
			}
			return o.sender.Send(ctx, mail.Message{
				To:      m.Client.Email,
				CC:      cc,
				Subject: "Weekly Report: " + repo.FullName,
				HTML:    html,
			})
		})
		if sendErr != nil {
			// One dead mailbox must not block the other clients.
			result.Errors = append(result.Errors, core.DigestError{
				Email: m.Client.Email,
				Error: sendErr.Error(),
			})
			continue
		}

		// Stamped only after the send is confirmed; crashing between the
		// two at worst repeats one email, never loses one.
		mappingID := m.ID
		markErr := runtime.Do(ctx, run, "mark-delivered-"+m.ClientID, func(ctx context.Context) error {
			return o.store.MarkDelivered(ctx, mappingID, o.now())
		})
		if markErr != nil {
			o.logger.Error("digest sent but delivery stamp failed",
				"repository", repo.FullName, "client", m.Client.Email, "error", markErr)
		}
		result.SentTo++
	}

	o.logger.Info("weekly summary run finished",
		"repository", repo.FullName,
		"sent", result.SentTo,
		"skipped", result.SkippedCount,
		"errors", len(result.Errors),
	)
	return result, nil
}

// alreadyDeliveredThisWeek applies the cron idempotency guard: a client
// whose mapping was stamped in the current ISO week is skipped on cron
// runs. Manual runs always send.
func (o *Orchestrator) alreadyDeliveredThisWeek(triggeredBy string, m core.ClientMapping, week core.WeekKey) bool {
	if triggeredBy != core.TriggeredByCron {
		return false
	}
	if m.DeliveredAt == nil {
		return false
	}
	return core.WeekKeyOf(*m.DeliveredAt) == week
}

func (o *Orchestrator) resolveCC(payload core.WeeklySummaryRequested, repo *core.Repository) string {
	if payload.ManagerEmail != "" {
		return payload.ManagerEmail
	}
	if repo.UserEmail != "" {
		return repo.UserEmail
	}
	if payload.TriggeredBy == core.TriggeredByCron {
		return o.defaultCC
	}
	return ""
}
