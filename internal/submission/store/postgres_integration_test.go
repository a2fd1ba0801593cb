//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"citeline/internal/submission/models"
	"citeline/internal/submission/store"
	id "citeline/pkg/domain"
	"citeline/pkg/platform/sentinel"
	"citeline/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ApplySchema(context.Background(), store.Schema))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "review_history", "submissions"))
}

func newTestSubmission(country id.Country) *models.Submission {
	sub, _ := models.NewSubmission(
		id.NewSubmissionID(), id.NewUserID(),
		"https://example.org/source", "", "Example Source", "Example Press",
		country, models.CategorySecondary, time.Now().UTC().Truncate(time.Microsecond),
	)
	return sub
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	sub := newTestSubmission("GH")
	s.Require().NoError(s.store.Create(ctx, sub))

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.Title, found.Title)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(uint64(1), found.Version)
	s.Require().Len(found.ReviewHistory, 1)
	s.Equal(models.ReviewActionSubmitted, found.ReviewHistory[0].Action)
}

func (s *PostgresStoreSuite) TestDuplicateCreateConflicts() {
	ctx := context.Background()
	sub := newTestSubmission("GH")
	s.Require().NoError(s.store.Create(ctx, sub))
	s.Require().ErrorIs(s.store.Create(ctx, sub), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestExecuteAppendsHistory() {
	ctx := context.Background()
	sub := newTestSubmission("GH")
	s.Require().NoError(s.store.Create(ctx, sub))

	verifier := id.NewUserID()
	now := time.Now().UTC().Truncate(time.Microsecond)
	updated, err := s.store.Execute(ctx, sub.ID,
		func(cur *models.Submission) error {
			return cur.CanTransition(models.StatusApproved, models.CredibilityCredible, false)
		},
		func(cur *models.Submission) {
			cur.ApplyTransition(verifier, models.StatusApproved, models.CredibilityCredible, "verified archive copy", now)
		},
	)
	s.Require().NoError(err)
	s.Equal(uint64(2), updated.Version)

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
	s.Equal(models.CredibilityCredible, found.Credibility)
	s.Require().NotNil(found.VerifierID)
	s.Equal(verifier, *found.VerifierID)
	s.Require().Len(found.ReviewHistory, 2)
	s.Equal(models.ReviewActionApproved, found.ReviewHistory[1].Action)
}

// TestExecuteRace drives concurrent transitions at the same row; the version
// check must let exactly one writer through per version.
func (s *PostgresStoreSuite) TestExecuteRace() {
	ctx := context.Background()
	sub := newTestSubmission("GH")
	s.Require().NoError(s.store.Create(ctx, sub))

	var g errgroup.Group
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := s.store.Execute(ctx, sub.ID,
				func(cur *models.Submission) error {
					if cur.Status.IsTerminal() {
						return sentinel.ErrInvalidState
					}
					return nil
				},
				func(cur *models.Submission) {
					cur.ApplyTransition(id.NewUserID(), models.StatusRejected, models.CredibilityUnset, "", time.Now().UTC())
				},
			)
			results <- err
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			s.True(errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrVersionMismatch),
				"unexpected loser error: %v", err)
		}
	}
	s.Equal(1, wins)

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(uint64(2), found.Version)
	s.Len(found.ReviewHistory, 2)
}

func (s *PostgresStoreSuite) TestDeleteCascadesHistory() {
	ctx := context.Background()
	sub := newTestSubmission("NG")
	s.Require().NoError(s.store.Create(ctx, sub))

	deleted, err := s.store.Delete(ctx, sub.ID, func(*models.Submission) error { return nil })
	s.Require().NoError(err)
	s.Equal(sub.ID, deleted.ID)
	s.Require().Len(deleted.ReviewHistory, 1)

	_, err = s.store.FindByID(ctx, sub.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Delete(ctx, sub.ID, func(*models.Submission) error { return nil })
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteValidationKeepsRecord() {
	ctx := context.Background()
	sub := newTestSubmission("NG")
	s.Require().NoError(s.store.Create(ctx, sub))

	_, err := s.store.Delete(ctx, sub.ID, func(cur *models.Submission) error {
		if cur.Status == models.StatusPending {
			return sentinel.ErrInvalidState
		}
		return nil
	})
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)
}
