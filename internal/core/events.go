// Package core defines the domain types shared by the indexing, review,
// and digest pipelines. These types are deliberately free of transport
// and storage concerns so the pipelines stay decoupled from their
// implementations.
package core

import "fmt"

// Event names consumed by the step-retry runtime. Payloads arrive
// already validated from the HTTP layer or the cron scheduler.
const (
	EventPRReviewRequested = "pr.review.requested"
	EventWeeklySummary     = "repo.weekly.summary"
	EventWeeklyCronTick    = "repo.weekly.cron"
	EventIndexRequested    = "repo.index.requested"
)

// Trigger sources for a weekly summary run. Cron-triggered runs apply
// the per-client ISO-week delivery guard; manual runs bypass it.
const (
	TriggeredByCron   = "cron"
	TriggeredByManual = "manual"
)

// ReviewRequested is the payload of a pr.review.requested event.
type ReviewRequested struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	PRNumber int    `json:"prNumber"`
	UserID   string `json:"userId"`
}

// Validate checks that the event carries everything a review run needs.
func (r ReviewRequested) Validate() error {
	if r.Owner == "" || r.Repo == "" {
		return fmt.Errorf("repository owner and name are required")
	}
	if r.PRNumber <= 0 {
		return fmt.Errorf("invalid pull request number: %d", r.PRNumber)
	}
	if r.UserID == "" {
		return fmt.Errorf("requesting user id is required")
	}
	return nil
}

// RepoFullName returns the owner/name pair used as the index repo id.
func (r ReviewRequested) RepoFullName() string {
	return r.Owner + "/" + r.Repo
}

// WeeklySummaryRequested is the payload of a repo.weekly.summary event.
type WeeklySummaryRequested struct {
	RepositoryID string `json:"repositoryId"`
	TriggeredBy  string `json:"triggeredBy"`
	ManagerEmail string `json:"managerEmail,omitempty"`
}

// Validate checks the summary trigger payload.
func (w WeeklySummaryRequested) Validate() error {
	if w.RepositoryID == "" {
		return fmt.Errorf("repository id is required")
	}
	if w.TriggeredBy != TriggeredByCron && w.TriggeredBy != TriggeredByManual {
		return fmt.Errorf("unknown trigger source: %q", w.TriggeredBy)
	}
	return nil
}

// SnapshotFile is one (path, content) pair of a repository snapshot.
type SnapshotFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// IndexRequested is the payload of a repo.index.requested event. The
// snapshot it carries is ephemeral and lives only for the duration of
// the indexing run.
type IndexRequested struct {
	RepositoryID string         `json:"repositoryId"`
	Files        []SnapshotFile `json:"files"`
}

// Validate checks the indexing trigger payload.
func (i IndexRequested) Validate() error {
	if i.RepositoryID == "" {
		return fmt.Errorf("repository id is required")
	}
	if len(i.Files) == 0 {
		return fmt.Errorf("snapshot contains no files")
	}
	return nil
}
