package core

import "time"

// Review statuses. Transitions are terminal: a retried run never
// overwrites a completed record, a new PR event creates a new record.
const (
	ReviewStatusCompleted = "completed"
	ReviewStatusFailed    = "failed"
	ReviewStatusPending   = "pending"
)

// Review is a persisted record of one generated pull-request review.
type Review struct {
	ID           int64     `db:"id"`
	RepositoryID string    `db:"repository_id"`
	PRNumber     int       `db:"pr_number"`
	PRTitle      string    `db:"pr_title"`
	PRURL        string    `db:"pr_url"`
	Body         string    `db:"review"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// PullRequestData is the fetched state of a pull request used to drive
// one review generation: the unified diff plus title and description.
type PullRequestData struct {
	Diff        string `json:"diff"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
