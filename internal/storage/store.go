// Package storage provides the Postgres-backed persistence layer:
// credentials, repositories, reviews, client mappings, the step-result
// ledger, and the vector index.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/reviewloop/reviewloop/internal/core"
)

// Store defines the record-store operations used by the pipelines.
type Store interface {
	// GetAccessToken resolves the stored source-control token for a user.
	// Returns core.ErrNoCredential when none exists.
	GetAccessToken(ctx context.Context, userID, provider string) (string, error)

	GetRepository(ctx context.Context, id string) (*core.Repository, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (*core.Repository, error)

	// ListRepositoriesWithClients returns every repository that has at
	// least one mapped digest client.
	ListRepositoriesWithClients(ctx context.Context) ([]core.Repository, error)

	SaveReview(ctx context.Context, review *core.Review) error
	RecentReviews(ctx context.Context, repositoryID string, limit int) ([]core.Review, error)

	ListClientMappings(ctx context.Context, repositoryID string) ([]core.ClientMapping, error)

	// MarkDelivered stamps a single mapping row after a confirmed send.
	// The update is scoped to that one row; mappings are independent.
	MarkDelivered(ctx context.Context, mappingID string, at time.Time) error
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Store backed by Postgres.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) GetAccessToken(ctx context.Context, userID, provider string) (string, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token FROM accounts WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !token.Valid) || (err == nil && token.String == "") {
		return "", fmt.Errorf("%w: user %s provider %s", core.ErrNoCredential, userID, provider)
	}
	if err != nil {
		return "", fmt.Errorf("querying account: %w", err)
	}
	return token.String, nil
}

func (s *postgresStore) GetRepository(ctx context.Context, id string) (*core.Repository, error) {
	var repo core.Repository
	err := s.db.GetContext(ctx, &repo,
		`SELECT id, owner, name, full_name, url, user_id, user_email FROM repositories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRepositoryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying repository: %w", err)
	}
	return &repo, nil
}

func (s *postgresStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*core.Repository, error) {
	var repo core.Repository
	err := s.db.GetContext(ctx, &repo,
		`SELECT id, owner, name, full_name, url, user_id, user_email FROM repositories WHERE full_name = $1`, fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRepositoryNotFound, fullName)
	}
	if err != nil {
		return nil, fmt.Errorf("querying repository: %w", err)
	}
	return &repo, nil
}

func (s *postgresStore) ListRepositoriesWithClients(ctx context.Context) ([]core.Repository, error) {
	var repos []core.Repository
	err := s.db.SelectContext(ctx, &repos, `
		SELECT r.id, r.owner, r.name, r.full_name, r.url, r.user_id, r.user_email
		FROM repositories r
		WHERE EXISTS (SELECT 1 FROM repository_clients rc WHERE rc.repository_id = r.id)
		ORDER BY r.full_name`)
	if err != nil {
		return nil, fmt.Errorf("listing repositories with clients: %w", err)
	}
	return repos, nil
}

func (s *postgresStore) SaveReview(ctx context.Context, review *core.Review) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (repository_id, pr_number, pr_title, pr_url, review, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.RepositoryID, review.PRNumber, review.PRTitle, review.PRURL,
		review.Body, review.Status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}
	return nil
}

func (s *postgresStore) RecentReviews(ctx context.Context, repositoryID string, limit int) ([]core.Review, error) {
	var reviews []core.Review
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT id, repository_id, pr_number, pr_title, pr_url, review, status, created_at
		FROM reviews
		WHERE repository_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent reviews: %w", err)
	}
	return reviews, nil
}

func (s *postgresStore) ListClientMappings(ctx context.Context, repositoryID string) ([]core.ClientMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rc.id, rc.repository_id, rc.client_id, rc.delivered_at, c.id, c.name, c.email
		FROM repository_clients rc
		JOIN clients c ON c.id = rc.client_id
		WHERE rc.repository_id = $1
		ORDER BY c.email`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("listing client mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []core.ClientMapping
	for rows.Next() {
		var m core.ClientMapping
		var deliveredAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.RepositoryID, &m.ClientID, &deliveredAt,
			&m.Client.ID, &m.Client.Name, &m.Client.Email); err != nil {
			return nil, fmt.Errorf("scanning client mapping: %w", err)
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			m.DeliveredAt = &t
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client mappings: %w", err)
	}
	return mappings, nil
}

func (s *postgresStore) MarkDelivered(ctx context.Context, mappingID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repository_clients SET delivered_at = $1 WHERE id = $2`, at, mappingID)
	if err != nil {
		return fmt.Errorf("marking mapping delivered: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mapping %s not found", mappingID)
	}
	return nil
}
