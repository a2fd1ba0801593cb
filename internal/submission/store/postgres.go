package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	"citeline/pkg/platform/sentinel"
)

// PostgresStore persists submissions in PostgreSQL. This store is pure I/O;
// transition rules live in the domain model and services.
//
// Execute relies on an optimistic version check (UPDATE ... WHERE version = $n)
// rather than row locks, so readers are never blocked and a lost race surfaces
// as sentinel.ErrVersionMismatch for the service to retry.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed submission store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const submissionColumns = `id, url, file_reference, title, publisher, country, category,
	submitter_id, status, credibility, verifier_id, verifier_notes, verified_at,
	version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create submission: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sub.Version = 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		sub.ID.String(), sub.URL, sub.FileReference, sub.Title, sub.Publisher,
		sub.Country.String(), sub.Category.String(), sub.SubmitterID.String(),
		sub.Status.String(), sub.Credibility.String(), nullableUserID(sub.VerifierID),
		sub.VerifierNotes, sub.VerifiedAt, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert submission: %w", err)
	}

	if err := insertHistory(ctx, tx, sub.ID, 0, sub.ReviewHistory); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := s.loadSubmission(ctx, s.db, submissionID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []id.SubmissionID) ([]*models.Submission, error) {
	out := make([]*models.Submission, 0, len(ids))
	for _, submissionID := range ids {
		sub, err := s.loadSubmission(ctx, s.db, submissionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, submissionID id.SubmissionID,
	validate func(*models.Submission) error) (*models.Submission, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sub, err := s.loadSubmission(ctx, tx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := validate(sub); err != nil {
		return nil, err
	}

	// The version guard rejects the delete when a transition committed after
	// the read above; review_history rows go with the cascade.
	res, err := tx.ExecContext(ctx, `
		DELETE FROM submissions WHERE id = $1 AND version = $2
	`, submissionID.String(), sub.Version)
	if err != nil {
		return nil, fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete submission rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrVersionMismatch
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) Execute(ctx context.Context, submissionID id.SubmissionID,
	validate func(*models.Submission) error,
	mutate func(*models.Submission)) (*models.Submission, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sub, err := s.loadSubmission(ctx, tx, submissionID)
	if err != nil {
		return nil, err
	}

	loadedVersion := sub.Version
	historyLen := len(sub.ReviewHistory)

	if err := validate(sub); err != nil {
		return nil, err
	}
	mutate(sub)
	sub.Version = loadedVersion + 1

	res, err := tx.ExecContext(ctx, `
		UPDATE submissions SET
			status = $1, credibility = $2, verifier_id = $3, verifier_notes = $4,
			verified_at = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9
	`,
		sub.Status.String(), sub.Credibility.String(), nullableUserID(sub.VerifierID),
		sub.VerifierNotes, sub.VerifiedAt, sub.Version, sub.UpdatedAt,
		submissionID.String(), loadedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update submission rows affected: %w", err)
	}
	if affected == 0 {
		// A concurrent transition committed between our read and write.
		return nil, sentinel.ErrVersionMismatch
	}

	if err := insertHistory(ctx, tx, submissionID, historyLen, sub.ReviewHistory); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return sub, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) loadSubmission(ctx context.Context, q queryer, submissionID id.SubmissionID) (*models.Submission, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE id = $1
	`, submissionID.String())

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT actor_id, action, notes, created_at
		FROM review_history
		WHERE submission_id = $1
		ORDER BY seq
	`, submissionID.String())
	if err != nil {
		return nil, fmt.Errorf("get review history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			actorRaw  string
			action    string
			notes     string
			createdAt time.Time
		)
		if err := rows.Scan(&actorRaw, &action, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan review history: %w", err)
		}
		actorID, err := uuid.Parse(actorRaw)
		if err != nil {
			return nil, fmt.Errorf("parse history actor id: %w", err)
		}
		sub.ReviewHistory = append(sub.ReviewHistory, models.ReviewEntry{
			ActorID:   id.UserID(actorID),
			Action:    models.ReviewAction(action),
			Notes:     notes,
			Timestamp: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review history: %w", err)
	}
	return sub, nil
}

func scanSubmission(row *sql.Row) (*models.Submission, error) {
	var (
		sub         models.Submission
		idRaw       string
		country     string
		category    string
		submitter   string
		status      string
		credibility string
		verifier    sql.NullString
		verifiedAt  sql.NullTime
	)
	err := row.Scan(
		&idRaw, &sub.URL, &sub.FileReference, &sub.Title, &sub.Publisher,
		&country, &category, &submitter, &status, &credibility,
		&verifier, &sub.VerifierNotes, &verifiedAt,
		&sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idRaw)
	if err != nil {
		return nil, fmt.Errorf("parse submission id: %w", err)
	}
	sub.ID = id.SubmissionID(parsedID)

	parsedSubmitter, err := uuid.Parse(submitter)
	if err != nil {
		return nil, fmt.Errorf("parse submitter id: %w", err)
	}
	sub.SubmitterID = id.UserID(parsedSubmitter)

	sub.Country = id.Country(country)
	sub.Category = models.Category(category)
	sub.Status = models.Status(status)
	sub.Credibility = models.Credibility(credibility)

	if verifier.Valid {
		parsedVerifier, err := uuid.Parse(verifier.String)
		if err != nil {
			return nil, fmt.Errorf("parse verifier id: %w", err)
		}
		v := id.UserID(parsedVerifier)
		sub.VerifierID = &v
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		sub.VerifiedAt = &t
	}
	return &sub, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, submissionID id.SubmissionID, fromSeq int, history []models.ReviewEntry) error {
	for i := fromSeq; i < len(history); i++ {
		entry := history[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO review_history (submission_id, seq, actor_id, action, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, submissionID.String(), i+1, entry.ActorID.String(), string(entry.Action), entry.Notes, entry.Timestamp)
		if err != nil {
			return fmt.Errorf("insert review history: %w", err)
		}
	}
	return nil
}

func nullableUserID(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return userID.String()
}

// isUniqueViolation matches Postgres error code 23505 without importing the
// driver's error type into the store contract.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}
