package core

import "time"

// Repository is a connected source repository with the user who linked it.
type Repository struct {
	ID        string `db:"id"`
	Owner     string `db:"owner"`
	Name      string `db:"name"`
	FullName  string `db:"full_name"`
	URL       string `db:"url"`
	UserID    string `db:"user_id"`
	UserEmail string `db:"user_email"`
}

// Client is a person who receives weekly digests for mapped repositories.
type Client struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

// ClientMapping links a repository to one digest recipient. DeliveredAt
// records the last successful cron delivery; its ISO week is the
// idempotency key that prevents a second send within the same week.
type ClientMapping struct {
	ID           string     `db:"id"`
	RepositoryID string     `db:"repository_id"`
	ClientID     string     `db:"client_id"`
	DeliveredAt  *time.Time `db:"delivered_at"`
	Client       Client     `db:"client"`
}
