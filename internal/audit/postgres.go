package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "citeline/pkg/domain"
)

// Schema is the DDL for the audit trail. The table is append-only; nothing in
// the application updates or deletes rows.
const Schema = `
CREATE TABLE IF NOT EXISTS moderation_audit (
    seq           BIGSERIAL PRIMARY KEY,
    occurred_at   TIMESTAMPTZ NOT NULL,
    submission_id UUID        NOT NULL,
    actor_id      UUID        NOT NULL,
    action        TEXT        NOT NULL,
    status        TEXT        NOT NULL,
    credibility   TEXT        NOT NULL DEFAULT '',
    country       TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_moderation_audit_submission
    ON moderation_audit (submission_id, seq);
`

// PostgresStore persists audit entries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_audit
			(occurred_at, submission_id, actor_id, action, status, credibility, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Timestamp, entry.SubmissionID.String(), entry.ActorID.String(),
		entry.Action, entry.Status, entry.Credibility, entry.Country,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, submission_id, actor_id, action, status, credibility, country
		FROM moderation_audit
		WHERE submission_id = $1
		ORDER BY seq`,
		submissionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry           Entry
			rawSubmissionID string
			rawActorID      string
		)
		if err := rows.Scan(&entry.Timestamp, &rawSubmissionID, &rawActorID,
			&entry.Action, &entry.Status, &entry.Credibility, &entry.Country); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if entry.SubmissionID, err = id.ParseSubmissionID(rawSubmissionID); err != nil {
			return nil, fmt.Errorf("parse audit submission id: %w", err)
		}
		if entry.ActorID, err = id.ParseUserID(rawActorID); err != nil {
			return nil, fmt.Errorf("parse audit actor id: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
