package store

import (
	"context"
	"database/sql"
	"fmt"

	"citeline/internal/points/models"
	id "citeline/pkg/domain"
)

// PostgresStore persists the point ledger in PostgreSQL. Apply runs inside a
// transaction: the award insert doubles as the at-most-once check and the
// account row is locked for the duration of the update callback, so
// increment-and-check-badges cannot lose updates.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed point ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (*models.Account, error) {
	acc, err := s.loadAccount(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *PostgresStore) Apply(ctx context.Context, award models.Award, update func(acc *models.Account)) (*models.Account, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin apply award: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO point_awards (user_id, submission_id, rule, points, awarded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, submission_id, rule) DO NOTHING
	`, award.UserID.String(), award.SubmissionID.String(), award.Rule.String(), award.Points, award.AwardedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert award: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert award rows affected: %w", err)
	}
	if inserted == 0 {
		// Triple already applied; the award is a no-op.
		acc, err := s.loadAccount(ctx, tx, award.UserID)
		if err != nil {
			return nil, false, err
		}
		return acc, false, nil
	}

	// Ensure the account row exists, then lock it for the update callback.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO point_accounts (user_id, points, approved_count, verified_count, updated_at)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, award.UserID.String(), award.AwardedAt); err != nil {
		return nil, false, fmt.Errorf("ensure account: %w", err)
	}

	acc := &models.Account{UserID: award.UserID}
	err = tx.QueryRowContext(ctx, `
		SELECT points, approved_count, verified_count
		FROM point_accounts
		WHERE user_id = $1
		FOR UPDATE
	`, award.UserID.String()).Scan(&acc.Points, &acc.ApprovedCount, &acc.VerifiedCount)
	if err != nil {
		return nil, false, fmt.Errorf("lock account: %w", err)
	}
	if acc.Badges, err = loadBadges(ctx, tx, award.UserID); err != nil {
		return nil, false, err
	}

	before := len(acc.Badges)
	update(acc)
	acc.UpdatedAt = award.AwardedAt

	if _, err := tx.ExecContext(ctx, `
		UPDATE point_accounts
		SET points = $1, approved_count = $2, verified_count = $3, updated_at = $4
		WHERE user_id = $5
	`, acc.Points, acc.ApprovedCount, acc.VerifiedCount, acc.UpdatedAt, award.UserID.String()); err != nil {
		return nil, false, fmt.Errorf("update account: %w", err)
	}

	for _, badge := range acc.Badges[before:] {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_badges (user_id, badge, earned_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, badge) DO NOTHING
		`, award.UserID.String(), string(badge), award.AwardedAt); err != nil {
			return nil, false, fmt.Errorf("insert badge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit apply award: %w", err)
	}
	return acc, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) loadAccount(ctx context.Context, q queryer, userID id.UserID) (*models.Account, error) {
	acc := &models.Account{UserID: userID}
	err := q.QueryRowContext(ctx, `
		SELECT points, approved_count, verified_count, updated_at
		FROM point_accounts
		WHERE user_id = $1
	`, userID.String()).Scan(&acc.Points, &acc.ApprovedCount, &acc.VerifiedCount, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// Accounts exist implicitly; unknown users are zero-valued.
			return acc, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.Badges, err = loadBadges(ctx, q, userID); err != nil {
		return nil, err
	}
	return acc, nil
}

func loadBadges(ctx context.Context, q queryer, userID id.UserID) ([]models.Badge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT badge FROM user_badges WHERE user_id = $1 ORDER BY earned_at
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("get badges: %w", err)
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, models.Badge(b))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badges: %w", err)
	}
	return badges, nil
}
