package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reviewloop/reviewloop/internal/runtime"
)

// postgresLedger persists step results so memoization survives process
// restarts. Implements runtime.Ledger.
type postgresLedger struct {
	db *sqlx.DB
}

// NewLedger creates a Postgres-backed step-result ledger.
func NewLedger(db *sqlx.DB) runtime.Ledger {
	return &postgresLedger{db: db}
}

func (l *postgresLedger) Get(ctx context.Context, invocationID, step string) (*runtime.StepRecord, error) {
	var (
		status string
		value  []byte
		errMsg sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT status, value, error FROM step_results WHERE invocation_id = $1 AND step_name = $2`,
		invocationID, step,
	).Scan(&status, &value, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying step result: %w", err)
	}
	return &runtime.StepRecord{
		Status: runtime.StepStatus(status),
		Value:  value,
		ErrMsg: errMsg.String,
	}, nil
}

func (l *postgresLedger) Put(ctx context.Context, invocationID, step string, rec *runtime.StepRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO step_results (invocation_id, step_name, status, value, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (invocation_id, step_name)
		DO UPDATE SET status = EXCLUDED.status, value = EXCLUDED.value,
		              error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
		invocationID, step, string(rec.Status), []byte(rec.Value), rec.ErrMsg, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting step result: %w", err)
	}
	return nil
}
