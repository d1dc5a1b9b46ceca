// Package review generates pull-request reviews: fetch the PR, retrieve
// related symbols from the code index, run the model, post the comment,
// and persist the record.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/genai"
	"github.com/reviewloop/reviewloop/internal/github"
	"github.com/reviewloop/reviewloop/internal/runtime"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// FunctionName identifies the review function in the runtime.
const FunctionName = "generate-review"

// maxQueryDiffBytes bounds how much of the diff feeds the retrieval
// query; the full diff still goes into the review prompt.
const maxQueryDiffBytes = 2000

// ContextRetriever retrieves indexed symbols related to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query, repoID string, topK int) ([]core.UnitMatch, error)
}

// Job holds the collaborators of the review function.
type Job struct {
	store     storage.Store
	retriever ContextRetriever
	prompts   *genai.PromptManager
	generator genai.Generator
	newClient github.ClientFactory
	topK      int
	logger    *slog.Logger
}

// NewJob creates the review job. Panics on nil collaborators; wiring
// errors should fail at startup, not mid-invocation.
func NewJob(store storage.Store, retriever ContextRetriever, prompts *genai.PromptManager, generator genai.Generator, newClient github.ClientFactory, topK int, logger *slog.Logger) *Job {
	if store == nil || retriever == nil || prompts == nil || generator == nil || newClient == nil {
		panic("review job requires all collaborators")
	}
	if topK <= 0 {
		topK = 10
	}
	return &Job{
		store:     store,
		retriever: retriever,
		prompts:   prompts,
		generator: generator,
		newClient: newClient,
		topK:      topK,
		logger:    logger,
	}
}

// Function declares the runtime function triggered by pr.review.requested.
func (j *Job) Function(retries, concurrency int) runtime.Function {
	return runtime.Function{
		Name:        FunctionName,
		Event:       core.EventPRReviewRequested,
		Retries:     retries,
		Concurrency: concurrency,
		Handler:     j.handle,
	}
}

func (j *Job) handle(ctx context.Context, run *runtime.Run, event runtime.Event) (any, error) {
	var payload core.ReviewRequested
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, runtime.Fatal(fmt.Errorf("decoding review payload: %w", err))
	}
	if err := payload.Validate(); err != nil {
		return nil, runtime.Fatal(err)
	}

	// A missing credential can never be fixed by retrying, and it must
	// abort before any step runs so no comment or record is produced.
	token, err := j.store.GetAccessToken(ctx, payload.UserID, "github")
	if err != nil {
		if errors.Is(err, core.ErrNoCredential) {
			return nil, runtime.Fatal(err)
		}
		return nil, err
	}
	gh := j.newClient(ctx, token)

	prData, err := runtime.Step(ctx, run, "fetch-pr-data", func(ctx context.Context) (*core.PullRequestData, error) {
		return gh.GetPullRequestData(ctx, payload.Owner, payload.Repo, payload.PRNumber)
	})
	if err != nil {
		return nil, err
	}

	matches, err := runtime.Step(ctx, run, "retrieve-context", func(ctx context.Context) ([]core.UnitMatch, error) {
		query := prData.Title + "\n\n" + prData.Description + "\n\n" + genai.Truncate(prData.Diff, maxQueryDiffBytes)
		return j.retriever.Retrieve(ctx, query, payload.RepoFullName(), j.topK)
	})
	if err != nil {
		return nil, err
	}

	reviewBody, err := runtime.Step(ctx, run, "generate-review", func(ctx context.Context) (string, error) {
		prompt, err := j.prompts.Render(genai.CodeReviewPrompt, genai.DefaultProvider, map[string]string{
			"Title":         prData.Title,
			"Description":   prData.Description,
			"SymbolContext": FormatSymbolContext(matches),
			"Diff":          prData.Diff,
		})
		if err != nil {
			return "", fmt.Errorf("rendering review prompt: %w", err)
		}
		return j.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	err = runtime.Do(ctx, run, "post-comment", func(ctx context.Context) error {
		// The marker survives in the comment body, so even a lost ledger
		// write cannot produce a duplicate on redelivery.
		marker := commentMarker(run.InvocationID)
		posted, err := gh.HasMarkerComment(ctx, payload.Owner, payload.Repo, payload.PRNumber, marker)
		if err != nil {
			return err
		}
		if posted {
			j.logger.Info("review comment already posted, skipping",
				"repo", payload.RepoFullName(), "pr", payload.PRNumber)
			return nil
		}
		return gh.PostComment(ctx, payload.Owner, payload.Repo, payload.PRNumber, reviewBody+"\n\n"+marker)
	})
	if err != nil {
		return nil, err
	}

	err = runtime.Do(ctx, run, "save-review", func(ctx context.Context) error {
		repo, err := j.store.GetRepositoryByFullName(ctx, payload.RepoFullName())
		if errors.Is(err, core.ErrRepositoryNotFound) {
			// The comment is already on the PR; an unregistered repository
			// only loses the history record.
			j.logger.Warn("repository not registered, skipping review record",
				"repo", payload.RepoFullName())
			return nil
		}
		if err != nil {
			return err
		}
		return j.store.SaveReview(ctx, &core.Review{
			RepositoryID: repo.ID,
			PRNumber:     payload.PRNumber,
			PRTitle:      prData.Title,
			PRURL:        fmt.Sprintf("https://github.com/%s/pull/%d", payload.RepoFullName(), payload.PRNumber),
			Body:         reviewBody,
			Status:       core.ReviewStatusCompleted,
		})
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"repo":     payload.RepoFullName(),
		"prNumber": payload.PRNumber,
	}, nil
}

func commentMarker(invocationID string) string {
	return "<!-- reviewloop:" + invocationID + " -->"
}
