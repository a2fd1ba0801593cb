package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"citeline/internal/platform/config"
	"citeline/internal/points/ledger"
	pointstore "citeline/internal/points/store"
	"citeline/internal/submission/models"
	"citeline/internal/submission/store"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/requestcontext"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *capturingPublisher) last() models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type VerifyServiceSuite struct {
	suite.Suite

	submissions *store.InMemory
	points      *pointstore.InMemory
	ledger      *ledger.Ledger
	publisher   *capturingPublisher
	service     *Service

	submitterID id.UserID
	verifierID  id.UserID
	adminID     id.UserID
	now         time.Time
}

func TestVerifyServiceSuite(t *testing.T) {
	suite.Run(t, new(VerifyServiceSuite))
}

func (s *VerifyServiceSuite) SetupTest() {
	s.submissions = store.NewInMemory()
	s.points = pointstore.NewInMemory()
	s.publisher = &capturingPublisher{}
	s.submitterID = id.NewUserID()
	s.verifierID = id.NewUserID()
	s.adminID = id.NewUserID()
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	var err error
	s.ledger, err = ledger.New(s.points,
		config.PointsConfig{BaseSubmission: 10, ApprovalBonus: 20, VerifierReward: 5},
		config.BadgesConfig{ApprovedCount: 5, Points: 100},
	)
	s.Require().NoError(err)

	s.service, err = NewService(s.submissions, s.ledger, s.publisher)
	s.Require().NoError(err)
}

func (s *VerifyServiceSuite) seedPending(country id.Country) *models.Submission {
	sub, err := models.NewSubmission(id.NewSubmissionID(), s.submitterID,
		"https://example.org/report", "", "Election Observation Report", "Example Press",
		country, models.CategoryPrimary, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.submissions.Create(context.Background(), sub))
	return sub
}

func (s *VerifyServiceSuite) asActor(userID id.UserID, role id.Role, country id.Country) context.Context {
	ctx := requestcontext.WithActor(context.Background(), userID, role, country)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *VerifyServiceSuite) balance(userID id.UserID) int {
	acc, err := s.ledger.Balance(context.Background(), userID)
	s.Require().NoError(err)
	return acc.Points
}

func (s *VerifyServiceSuite) TestVerifierApprovesOwnCountrySubmission() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")

	got, err := s.service.Verify(ctx, sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
		Notes:       "source checks out",
	})

	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Equal(models.CredibilityCredible, got.Credibility)
	s.Require().NotNil(got.VerifierID)
	s.Equal(s.verifierID, *got.VerifierID)
	s.Require().NotNil(got.VerifiedAt)
	s.Equal(s.now, *got.VerifiedAt)
	s.Len(got.ReviewHistory, 2)
	s.Equal(models.ReviewActionApproved, got.ReviewHistory[1].Action)

	s.Equal(20, s.balance(s.submitterID), "submitter gains the approval bonus")
	s.Equal(5, s.balance(s.verifierID), "verifier gains the fixed reward")

	s.Require().Equal(1, s.publisher.count())
	event := s.publisher.last()
	s.Equal(models.EventSubmissionVerified, event.Action)
	s.Equal(sub.ID, event.Submission.ID)
	s.Equal(models.StatusApproved, event.Submission.Status)
}

func (s *VerifyServiceSuite) TestVerifierFromAnotherCountryIsForbidden() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.verifierID, id.RoleVerifier, "NG")

	_, err := s.service.Verify(ctx, sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	unchanged, err := s.submissions.FindByID(context.Background(), sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, unchanged.Status)
	s.Len(unchanged.ReviewHistory, 1)
	s.Equal(0, s.balance(s.submitterID))
	s.Equal(0, s.publisher.count(), "no event for a rejected authorization")
}

func (s *VerifyServiceSuite) TestContributorCannotVerify() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.submitterID, id.RoleContributor, "GH")

	_, err := s.service.Verify(ctx, sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *VerifyServiceSuite) TestRepeatedIdenticalVerifyIsNoOp() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")
	req := Request{Target: models.StatusApproved, Credibility: models.CredibilityCredible}

	first, err := s.service.Verify(ctx, sub.ID, req)
	s.Require().NoError(err)

	second, err := s.service.Verify(ctx, sub.ID, req)
	s.Require().NoError(err)

	s.Equal(first.Status, second.Status)
	s.Equal(first.Version, second.Version, "no new version for a no-op")
	s.Len(second.ReviewHistory, 2, "no history entry for a no-op")
	s.Equal(20, s.balance(s.submitterID), "points credited exactly once")
	s.Equal(5, s.balance(s.verifierID))
	s.Equal(1, s.publisher.count(), "no event for a no-op")
}

func (s *VerifyServiceSuite) TestRejectionAwardsNothing() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")

	got, err := s.service.Verify(ctx, sub.ID, Request{
		Target: models.StatusRejected,
		Notes:  "dead link",
	})

	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
	s.Equal(models.CredibilityUnset, got.Credibility)
	s.Equal(0, s.balance(s.submitterID))
	s.Equal(0, s.balance(s.verifierID))
	s.Equal(1, s.publisher.count(), "rejection still broadcasts")
}

func (s *VerifyServiceSuite) TestInvalidTransitionInputs() {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "approve without credibility", req: Request{Target: models.StatusApproved}},
		{name: "reject with credibility", req: Request{Target: models.StatusRejected, Credibility: models.CredibilityCredible}},
		{name: "pending target", req: Request{Target: models.StatusPending}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			sub := s.seedPending("GH")
			ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")
			_, err := s.service.Verify(ctx, sub.ID, tt.req)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func (s *VerifyServiceSuite) TestVerifierCannotChangeSettledOutcome() {
	sub := s.seedPending("GH")
	ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")

	_, err := s.service.Verify(ctx, sub.ID, Request{Target: models.StatusRejected})
	s.Require().NoError(err)

	_, err = s.service.Verify(ctx, sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *VerifyServiceSuite) TestAdminOverridesSettledOutcome() {
	sub := s.seedPending("GH")
	verifierCtx := s.asActor(s.verifierID, id.RoleVerifier, "GH")
	_, err := s.service.Verify(verifierCtx, sub.ID, Request{Target: models.StatusRejected})
	s.Require().NoError(err)

	adminCtx := s.asActor(s.adminID, id.RoleAdmin, "KE")
	got, err := s.service.Verify(adminCtx, sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
		Notes:       "appeal upheld",
	})

	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Require().Len(got.ReviewHistory, 3)
	s.Equal(models.ReviewActionOverridden, got.ReviewHistory[2].Action)
	s.Equal(20, s.balance(s.submitterID), "bonus applies on the first entry into approved")
	s.Equal(2, s.publisher.count())
}

func (s *VerifyServiceSuite) TestOverrideCycleNeverDoubleAwards() {
	sub := s.seedPending("GH")
	adminCtx := s.asActor(s.adminID, id.RoleAdmin, "KE")

	_, err := s.service.Verify(adminCtx, sub.ID, Request{Target: models.StatusApproved, Credibility: models.CredibilityCredible})
	s.Require().NoError(err)
	_, err = s.service.Verify(adminCtx, sub.ID, Request{Target: models.StatusRejected})
	s.Require().NoError(err)
	_, err = s.service.Verify(adminCtx, sub.ID, Request{Target: models.StatusApproved, Credibility: models.CredibilityCredible})
	s.Require().NoError(err)

	s.Equal(20, s.balance(s.submitterID), "re-entering approved does not re-pay the bonus")
	s.Equal(5, s.balance(s.adminID), "verifier reward paid once per submission")
}

func (s *VerifyServiceSuite) TestUnknownSubmission() {
	ctx := s.asActor(s.adminID, id.RoleAdmin, "KE")
	_, err := s.service.Verify(ctx, id.NewSubmissionID(), Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *VerifyServiceSuite) TestUnauthenticatedContext() {
	sub := s.seedPending("GH")
	_, err := s.service.Verify(context.Background(), sub.ID, Request{
		Target:      models.StatusApproved,
		Credibility: models.CredibilityCredible,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *VerifyServiceSuite) TestConcurrentVerifiersSingleAward() {
	sub := s.seedPending("GH")
	req := Request{Target: models.StatusApproved, Credibility: models.CredibilityCredible}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := s.asActor(s.verifierID, id.RoleVerifier, "GH")
			_, err := s.service.Verify(ctx, sub.ID, req)
			s.NoError(err)
		}()
	}
	wg.Wait()

	final, err := s.submissions.FindByID(context.Background(), sub.ID)
	s.Require().NoError(err)
	s.Len(final.ReviewHistory, 2, "exactly one transition committed")
	s.Equal(20, s.balance(s.submitterID), "racing identical decisions award once")
	s.Equal(5, s.balance(s.verifierID))
}
