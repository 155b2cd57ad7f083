package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists call attempts via database/sql (pgx stdlib driver).
//
// NOTE: assumes a call_attempts table:
//
//	id UUID PRIMARY KEY, created_at, updated_at TIMESTAMPTZ,
//	type, assistant_id, target_summary, provider_call_id, status,
//	notes, transcript, recording_url, recording_local_path TEXT,
//	duration_seconds INT, cost NUMERIC
//
// Upsert is the single write path; keyed by id so every attempt update is an
// atomic read-modify-write at the row level.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Upsert(ctx context.Context, a CallAttempt) error {
	const q = `
INSERT INTO call_attempts (
  id, created_at, updated_at, type, assistant_id, target_summary,
  provider_call_id, status, notes, transcript, recording_url,
  recording_local_path, duration_seconds, cost
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
ON CONFLICT (id)
DO UPDATE SET updated_at = EXCLUDED.updated_at,
              provider_call_id = EXCLUDED.provider_call_id,
              status = EXCLUDED.status,
              notes = EXCLUDED.notes,
              transcript = EXCLUDED.transcript,
              recording_url = EXCLUDED.recording_url,
              recording_local_path = EXCLUDED.recording_local_path,
              duration_seconds = EXCLUDED.duration_seconds,
              cost = EXCLUDED.cost
`
	_, err := s.db.ExecContext(ctx, q,
		a.ID,
		a.CreatedAt,
		a.UpdatedAt,
		a.Type,
		a.AssistantID,
		a.TargetSummary,
		a.ProviderCallID,
		a.Status,
		a.Notes,
		a.Transcript,
		a.RecordingURL,
		a.RecordingLocalPath,
		a.DurationSeconds,
		a.Cost,
	)
	return err
}

const selectAttemptColumns = `
SELECT id, created_at, updated_at, type, assistant_id, target_summary,
       provider_call_id, status, notes, transcript, recording_url,
       recording_local_path, duration_seconds, cost
FROM call_attempts
`

func scanAttempt(row *sql.Row) (CallAttempt, error) {
	var a CallAttempt
	err := row.Scan(
		&a.ID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Type,
		&a.AssistantID,
		&a.TargetSummary,
		&a.ProviderCallID,
		&a.Status,
		&a.Notes,
		&a.Transcript,
		&a.RecordingURL,
		&a.RecordingLocalPath,
		&a.DurationSeconds,
		&a.Cost,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallAttempt{}, ErrNotFound
		}
		return CallAttempt{}, err
	}
	return a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (CallAttempt, error) {
	const q = selectAttemptColumns + `WHERE id = $1`
	return scanAttempt(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) GetByProviderCallID(ctx context.Context, providerCallID string) (CallAttempt, error) {
	const q = selectAttemptColumns + `WHERE provider_call_id = $1 LIMIT 1`
	return scanAttempt(s.db.QueryRowContext(ctx, q, providerCallID))
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]CallAttempt, error) {
	q := selectAttemptColumns + `ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallAttempt
	for rows.Next() {
		var a CallAttempt
		if err := rows.Scan(
			&a.ID,
			&a.CreatedAt,
			&a.UpdatedAt,
			&a.Type,
			&a.AssistantID,
			&a.TargetSummary,
			&a.ProviderCallID,
			&a.Status,
			&a.Notes,
			&a.Transcript,
			&a.RecordingURL,
			&a.RecordingLocalPath,
			&a.DurationSeconds,
			&a.Cost,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM call_attempts`)
	return err
}
