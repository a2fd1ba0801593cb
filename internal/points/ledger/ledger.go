// Package ledger applies point awards and evaluates badge eligibility.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"citeline/internal/platform/config"
	"citeline/internal/platform/metrics"
	"citeline/internal/points/models"
	"citeline/internal/points/store"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/requestcontext"
)

// Ledger credits fixed-value awards and grants newly-eligible badges.
// Awards are at-most-once per (user, submission, rule); the store enforces
// the dedupe and the badge evaluation runs inside the same atomic unit as the
// point increment.
type Ledger struct {
	accounts store.Store
	points   config.PointsConfig
	badges   config.BadgesConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func New(accounts store.Store, points config.PointsConfig, badges config.BadgesConfig, opts ...Option) (*Ledger, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	l := &Ledger{
		accounts: accounts,
		points:   points,
		badges:   badges,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Award credits the rule's point value to the user for the given submission.
// Repeating an award for the same triple is a silent no-op that returns the
// current account. Points never decrease.
func (l *Ledger) Award(ctx context.Context, userID id.UserID, submissionID id.SubmissionID, rule models.RuleID) (*models.Account, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if submissionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submission_id is required")
	}
	if !rule.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown award rule")
	}

	value := l.valueOf(rule)
	award := models.Award{
		UserID:       userID,
		SubmissionID: submissionID,
		Rule:         rule,
		Points:       value,
		AwardedAt:    requestcontext.Now(ctx),
	}

	var newBadges []models.Badge
	acc, applied, err := l.accounts.Apply(ctx, award, func(acc *models.Account) {
		acc.Points += value
		switch rule {
		case models.RuleApprovalBonus:
			acc.ApprovedCount++
		case models.RuleVerifierReward:
			acc.VerifiedCount++
		}
		newBadges = l.evaluateBadges(acc)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply award")
	}
	if !applied {
		l.logger.DebugContext(ctx, "award already applied",
			"user_id", userID.String(),
			"submission_id", submissionID.String(),
			"rule", rule.String(),
		)
		return acc, nil
	}

	l.metrics.AddPointsAwarded(value)
	for _, badge := range newBadges {
		l.metrics.IncrementBadgesAwarded()
		l.logger.InfoContext(ctx, "badge awarded",
			"user_id", userID.String(),
			"badge", string(badge),
		)
	}
	return acc, nil
}

// Balance returns the user's current account snapshot.
func (l *Ledger) Balance(ctx context.Context, userID id.UserID) (*models.Account, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	acc, err := l.accounts.Get(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get account")
	}
	return acc, nil
}

func (l *Ledger) valueOf(rule models.RuleID) int {
	switch rule {
	case models.RuleBaseSubmission:
		return l.points.BaseSubmission
	case models.RuleApprovalBonus:
		return l.points.ApprovalBonus
	case models.RuleVerifierReward:
		return l.points.VerifierReward
	default:
		return 0
	}
}

// evaluateBadges grants any badge whose threshold the updated counters now
// cross and returns the newly granted set.
func (l *Ledger) evaluateBadges(acc *models.Account) []models.Badge {
	var granted []models.Badge
	if l.badges.ApprovedCount > 0 && acc.ApprovedCount >= l.badges.ApprovedCount {
		if acc.Grant(models.BadgeProlificContributor) {
			granted = append(granted, models.BadgeProlificContributor)
		}
	}
	if l.badges.Points > 0 && acc.Points >= l.badges.Points {
		if acc.Grant(models.BadgeCenturion) {
			granted = append(granted, models.BadgeCenturion)
		}
	}
	return granted
}
