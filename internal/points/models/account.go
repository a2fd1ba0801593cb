package models

import (
	"time"

	id "citeline/pkg/domain"
)

// RuleID names a fixed-value award rule.
type RuleID string

const (
	// RuleBaseSubmission is credited to the submitter at creation time.
	RuleBaseSubmission RuleID = "base-submission"
	// RuleApprovalBonus is credited to the submitter on the first transition
	// into approved.
	RuleApprovalBonus RuleID = "approval-bonus"
	// RuleVerifierReward is credited to the verifier for a non-rejected
	// verification.
	RuleVerifierReward RuleID = "verifier-reward"
)

func (r RuleID) IsValid() bool {
	switch r {
	case RuleBaseSubmission, RuleApprovalBonus, RuleVerifierReward:
		return true
	}
	return false
}

func (r RuleID) String() string { return string(r) }

// Badge identifies a one-time achievement marker.
type Badge string

const (
	// BadgeProlificContributor: at least N of the user's submissions approved.
	BadgeProlificContributor Badge = "prolific-contributor"
	// BadgeCenturion: total points crossed the configured threshold.
	BadgeCenturion Badge = "centurion"
)

// Account is the point/badge facet of a user.
//
// Invariants:
//   - Points is non-negative and only ever increased by workflow logic
//   - each badge is held at most once
//   - the sum of applied award values equals Points (ledger consistency)
type Account struct {
	UserID        id.UserID `json:"user_id"`
	Points        int       `json:"points"`
	ApprovedCount int       `json:"approved_count"`
	VerifiedCount int       `json:"verified_count"`
	Badges        []Badge   `json:"badges"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasBadge reports whether the badge is already held.
func (a *Account) HasBadge(b Badge) bool {
	for _, held := range a.Badges {
		if held == b {
			return true
		}
	}
	return false
}

// Grant adds the badge if missing and reports whether it was newly granted.
func (a *Account) Grant(b Badge) bool {
	if a.HasBadge(b) {
		return false
	}
	a.Badges = append(a.Badges, b)
	return true
}

// Award is one applied point delta. The (UserID, SubmissionID, Rule) triple is
// the at-most-once key: a triple already recorded is never applied again.
type Award struct {
	UserID       id.UserID       `json:"user_id"`
	SubmissionID id.SubmissionID `json:"submission_id"`
	Rule         RuleID          `json:"rule"`
	Points       int             `json:"points"`
	AwardedAt    time.Time       `json:"awarded_at"`
}
