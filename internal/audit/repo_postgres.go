package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events in Postgres.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id         UUID PRIMARY KEY,
//	    attempt_id TEXT NOT NULL DEFAULT '',
//	    type       TEXT NOT NULL,
//	    message    TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_attempt_idx ON audit_events (attempt_id, created_at);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, attempt_id, type, message, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.AttemptID, e.Type, e.Message, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListByAttempt(ctx context.Context, attemptID string) ([]Event, error) {
	const q = `
SELECT id, attempt_id, type, message, created_at
FROM audit_events
WHERE attempt_id = $1
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.Type, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
