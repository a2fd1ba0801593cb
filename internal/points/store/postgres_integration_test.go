//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"citeline/internal/points/models"
	"citeline/internal/points/store"
	id "citeline/pkg/domain"
	"citeline/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ApplySchema(context.Background(), store.Schema))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "point_awards", "user_badges", "point_accounts"))
}

func newTestAward(userID id.UserID, rule models.RuleID, points int) models.Award {
	return models.Award{
		UserID:       userID,
		SubmissionID: id.NewSubmissionID(),
		Rule:         rule,
		Points:       points,
		AwardedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresLedgerSuite) TestApplyCreditsAccount() {
	ctx := context.Background()
	userID := id.NewUserID()
	award := newTestAward(userID, models.RuleBaseSubmission, 10)

	acc, applied, err := s.store.Apply(ctx, award, func(acc *models.Account) {
		acc.Points += award.Points
	})
	s.Require().NoError(err)
	s.True(applied)
	s.Equal(10, acc.Points)

	reloaded, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)
	s.Equal(10, reloaded.Points)
}

func (s *PostgresLedgerSuite) TestApplySameTripleIsNoOp() {
	ctx := context.Background()
	userID := id.NewUserID()
	award := newTestAward(userID, models.RuleApprovalBonus, 20)

	_, applied, err := s.store.Apply(ctx, award, func(acc *models.Account) {
		acc.Points += award.Points
		acc.ApprovedCount++
	})
	s.Require().NoError(err)
	s.True(applied)

	acc, applied, err := s.store.Apply(ctx, award, func(acc *models.Account) {
		s.Fail("update must not run for an already-applied award")
	})
	s.Require().NoError(err)
	s.False(applied)
	s.Equal(20, acc.Points)
	s.Equal(1, acc.ApprovedCount)
}

func (s *PostgresLedgerSuite) TestBadgesPersistAndReload() {
	ctx := context.Background()
	userID := id.NewUserID()
	award := newTestAward(userID, models.RuleVerifierReward, 5)

	_, applied, err := s.store.Apply(ctx, award, func(acc *models.Account) {
		acc.Points += award.Points
		acc.VerifiedCount++
		acc.Grant(models.BadgeCenturion)
	})
	s.Require().NoError(err)
	s.True(applied)

	acc, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)
	s.True(acc.HasBadge(models.BadgeCenturion))
	s.Equal(1, acc.VerifiedCount)

	// Granting again on a later award must not duplicate the badge row.
	_, _, err = s.store.Apply(ctx, newTestAward(userID, models.RuleVerifierReward, 5), func(acc *models.Account) {
		acc.Points += 5
		acc.Grant(models.BadgeCenturion)
	})
	s.Require().NoError(err)

	acc, err = s.store.Get(ctx, userID)
	s.Require().NoError(err)
	s.Len(acc.Badges, 1)
}

func (s *PostgresLedgerSuite) TestUnknownUserGetsZeroAccount() {
	acc, err := s.store.Get(context.Background(), id.NewUserID())
	s.Require().NoError(err)
	s.Zero(acc.Points)
	s.Empty(acc.Badges)
}

func (s *PostgresLedgerSuite) TestConcurrentAwardsSum() {
	ctx := context.Background()
	userID := id.NewUserID()

	const workers = 8
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		award := newTestAward(userID, models.RuleBaseSubmission, 10)
		g.Go(func() error {
			_, _, err := s.store.Apply(ctx, award, func(acc *models.Account) {
				acc.Points += award.Points
			})
			return err
		})
	}
	s.Require().NoError(g.Wait())

	acc, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)
	s.Equal(workers*10, acc.Points)
}
