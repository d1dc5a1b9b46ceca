package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/reviewloop/reviewloop/internal/core"
)

// VectorStore defines the contract for the semantic code index.
type VectorStore interface {
	// UpsertBatch writes units by their deterministic ids; an existing
	// id is overwritten, which is what makes re-indexing idempotent.
	UpsertBatch(ctx context.Context, units []core.CodeUnit) error

	// Query returns up to topK units nearest to the vector, restricted
	// to one repository and unit type, ordered by similarity descending.
	Query(ctx context.Context, vector []float32, repoID, unitType string, topK int) ([]core.UnitMatch, error)
}

type pgvectorStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewVectorStore creates a pgvector-backed VectorStore.
func NewVectorStore(db *sqlx.DB, logger *slog.Logger) VectorStore {
	return &pgvectorStore{db: db, logger: logger}
}

func (s *pgvectorStore) UpsertBatch(ctx context.Context, units []core.CodeUnit) error {
	if len(units) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", core.ErrIndexUpsertFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO code_units
			(id, repo_id, path, unit_type, symbol_name, symbol_kind, start_line, end_line, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			repo_id = EXCLUDED.repo_id,
			path = EXCLUDED.path,
			unit_type = EXCLUDED.unit_type,
			symbol_name = EXCLUDED.symbol_name,
			symbol_kind = EXCLUDED.symbol_kind,
			start_line = EXCLUDED.start_line,
			end_line = EXCLUDED.end_line,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %v", core.ErrIndexUpsertFailed, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range units {
		_, err := stmt.ExecContext(ctx,
			u.ID, u.RepoID, u.Path, u.UnitType,
			nullIfEmpty(u.SymbolName), nullIfEmpty(u.SymbolKind),
			nullIfZero(u.StartLine), nullIfZero(u.EndLine),
			u.Content, pgvector.NewVector(u.Embedding),
		)
		if err != nil {
			return fmt.Errorf("%w: upserting unit %s: %v", core.ErrIndexUpsertFailed, u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing batch: %v", core.ErrIndexUpsertFailed, err)
	}

	s.logger.Debug("upserted code units", "count", len(units))
	return nil
}

func (s *pgvectorStore) Query(ctx context.Context, vector []float32, repoID, unitType string, topK int) ([]core.UnitMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo_id, path, unit_type, symbol_name, symbol_kind, start_line, end_line,
		       1 - (embedding <=> $1) AS score
		FROM code_units
		WHERE repo_id = $2 AND unit_type = $3
		ORDER BY embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(vector), repoID, unitType, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []core.UnitMatch
	for rows.Next() {
		var (
			m          core.UnitMatch
			name, kind sql.NullString
			start, end sql.NullInt64
		)
		if err := rows.Scan(&m.RepoID, &m.Path, &m.UnitType, &name, &kind, &start, &end, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.SymbolName = name.String
		m.SymbolKind = kind.String
		m.StartLine = int(start.Int64)
		m.EndLine = int(end.Int64)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
