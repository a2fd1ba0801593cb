package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/platform/sentinel"
)

type SubmissionStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *SubmissionStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestSubmissionStoreSuite(t *testing.T) {
	suite.Run(t, new(SubmissionStoreSuite))
}

func (s *SubmissionStoreSuite) newSubmission(country id.Country) *models.Submission {
	sub, err := models.NewSubmission(
		id.NewSubmissionID(), id.NewUserID(),
		"https://example.org/source", "", "Example Source", "Example Press",
		country, models.CategoryPrimary, time.Now().UTC(),
	)
	s.Require().NoError(err)
	return sub
}

func (s *SubmissionStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds submission by ID", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(sub.Title, found.Title)
		s.Equal(models.StatusPending, found.Status)
		s.Len(found.ReviewHistory, 1)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewSubmissionID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))
		s.Require().ErrorIs(s.store.Create(s.ctx, sub), sentinel.ErrConflict)
	})

	s.Run("lists by ids preserving input order and skipping unknowns", func() {
		a := s.newSubmission("GH")
		b := s.newSubmission("NG")
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.Require().NoError(s.store.Create(s.ctx, b))

		got, err := s.store.ListByIDs(s.ctx, []id.SubmissionID{b.ID, id.NewSubmissionID(), a.ID})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(b.ID, got[0].ID)
		s.Equal(a.ID, got[1].ID)
	})
}

func (s *SubmissionStoreSuite) TestSnapshotIsolation() {
	sub := s.newSubmission("GH")
	s.Require().NoError(s.store.Create(s.ctx, sub))

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	found.Title = "tampered"
	found.ReviewHistory[0].Notes = "tampered"

	again, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal("Example Source", again.Title)
	s.Empty(again.ReviewHistory[0].Notes)
}

func (s *SubmissionStoreSuite) TestExecute() {
	verifier := id.NewUserID()

	s.Run("applies transition and bumps version", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		now := time.Now().UTC()
		updated, err := s.store.Execute(s.ctx, sub.ID,
			func(cur *models.Submission) error {
				return cur.CanTransition(models.StatusApproved, models.CredibilityCredible, false)
			},
			func(cur *models.Submission) {
				cur.ApplyTransition(verifier, models.StatusApproved, models.CredibilityCredible, "looks good", now)
			},
		)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, updated.Status)
		s.Equal(uint64(2), updated.Version)
		s.Len(updated.ReviewHistory, 2)
	})

	s.Run("failed validation leaves record untouched", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		_, err := s.store.Execute(s.ctx, sub.ID,
			func(cur *models.Submission) error {
				return dErrors.New(dErrors.CodeConflict, "nope")
			},
			func(cur *models.Submission) {
				cur.Status = models.StatusRejected
			},
		)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		found, findErr := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(findErr)
		s.Equal(models.StatusPending, found.Status)
		s.Equal(uint64(1), found.Version)
		s.Len(found.ReviewHistory, 1)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.Execute(s.ctx, id.NewSubmissionID(),
			func(*models.Submission) error { return nil },
			func(*models.Submission) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *SubmissionStoreSuite) TestDelete() {
	s.Run("removes the record and returns its last state", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		deleted, err := s.store.Delete(s.ctx, sub.ID, func(*models.Submission) error { return nil })
		s.Require().NoError(err)
		s.Equal(sub.ID, deleted.ID)
		s.Equal(models.StatusPending, deleted.Status)

		_, err = s.store.FindByID(s.ctx, sub.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("failed validation keeps the record", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		_, err := s.store.Delete(s.ctx, sub.ID, func(*models.Submission) error {
			return dErrors.New(dErrors.CodeForbidden, "nope")
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		found, findErr := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(findErr)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("validation observes a concurrent transition", func() {
		sub := s.newSubmission("GH")
		s.Require().NoError(s.store.Create(s.ctx, sub))

		_, err := s.store.Execute(s.ctx, sub.ID,
			func(cur *models.Submission) error {
				return cur.CanTransition(models.StatusApproved, models.CredibilityCredible, false)
			},
			func(cur *models.Submission) {
				cur.ApplyTransition(id.NewUserID(), models.StatusApproved, models.CredibilityCredible, "", time.Now().UTC())
			},
		)
		s.Require().NoError(err)

		_, err = s.store.Delete(s.ctx, sub.ID, func(cur *models.Submission) error {
			if cur.Status != models.StatusPending {
				return dErrors.New(dErrors.CodeForbidden, "no longer pending")
			}
			return nil
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		found, findErr := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(findErr)
		s.Equal(models.StatusApproved, found.Status)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.Delete(s.ctx, id.NewSubmissionID(), func(*models.Submission) error { return nil })
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentExecute verifies that two racing transitions on the same id
// serialize: exactly one wins and the loser observes the terminal state.
func (s *SubmissionStoreSuite) TestConcurrentExecute() {
	sub := s.newSubmission("GH")
	s.Require().NoError(s.store.Create(s.ctx, sub))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, sub.ID,
				func(cur *models.Submission) error {
					if cur.Status.IsTerminal() {
						return dErrors.New(dErrors.CodeConflict, "already reviewed")
					}
					return nil
				},
				func(cur *models.Submission) {
					cur.ApplyTransition(id.NewUserID(), models.StatusApproved, models.CredibilityCredible, "", time.Now().UTC())
				},
			)
			if err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	s.Equal(1, len(wins))

	final, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(uint64(2), final.Version)
	s.Len(final.ReviewHistory, 2)
}
