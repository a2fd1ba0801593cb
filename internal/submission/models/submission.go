package models

import (
	"strings"
	"time"

	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
)

// Status is the workflow state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsValid reports whether the status is a supported workflow state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a reviewed outcome.
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

func (s Status) String() string { return string(s) }

// ParseStatus validates an external status value.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status must be pending, approved, or rejected")
	}
	return s, nil
}

// Credibility sub-classifies an approved submission.
type Credibility string

const (
	CredibilityCredible   Credibility = "credible"
	CredibilityUnreliable Credibility = "unreliable"
	CredibilityUnset      Credibility = ""
)

// IsValid reports whether the credibility is a supported value (unset counts).
func (c Credibility) IsValid() bool {
	switch c {
	case CredibilityCredible, CredibilityUnreliable, CredibilityUnset:
		return true
	}
	return false
}

func (c Credibility) String() string { return string(c) }

// ParseCredibility validates an external credibility value. Empty is allowed
// and means unset.
func ParseCredibility(v string) (Credibility, error) {
	c := Credibility(strings.ToLower(strings.TrimSpace(v)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credibility must be credible or unreliable")
	}
	return c, nil
}

// Category classifies the source type at submission time.
type Category string

const (
	CategoryPrimary    Category = "primary"
	CategorySecondary  Category = "secondary"
	CategoryUnreliable Category = "unreliable"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryPrimary, CategorySecondary, CategoryUnreliable:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// ParseCategory validates an external category value.
func ParseCategory(v string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(v)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category must be primary, secondary, or unreliable")
	}
	return c, nil
}

// ReviewAction labels a history entry.
type ReviewAction string

const (
	ReviewActionSubmitted  ReviewAction = "submitted"
	ReviewActionApproved   ReviewAction = "approved"
	ReviewActionRejected   ReviewAction = "rejected"
	ReviewActionOverridden ReviewAction = "overridden"
)

// ReviewEntry is one append-only record of a workflow action.
// Entries are never mutated or reordered after the fact.
type ReviewEntry struct {
	ActorID   id.UserID    `json:"actor_id"`
	Action    ReviewAction `json:"action"`
	Notes     string       `json:"notes,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Submission is the aggregate root for a citation source under review.
//
// Invariants:
//   - URL or FileReference, Title, Publisher, Country, Category, SubmitterID
//     are immutable after creation
//   - Status pending implies VerifierID, VerifiedAt, and Credibility are unset
//   - Status approved or rejected implies VerifierID and VerifiedAt are set
//   - Credibility is only meaningful when Status is approved
//   - ReviewHistory grows by exactly one entry per transition and is never
//     rewritten
//
// The Version field backs optimistic concurrency in stores: every committed
// mutation increments it, and conditional updates compare against it so two
// verifiers racing on the same pending item cannot both win.
type Submission struct {
	ID            id.SubmissionID `json:"id"`
	URL           string          `json:"url,omitempty"`
	FileReference string          `json:"file_reference,omitempty"`
	Title         string          `json:"title"`
	Publisher     string          `json:"publisher"`
	Country       id.Country      `json:"country"`
	Category      Category        `json:"category"`
	SubmitterID   id.UserID       `json:"submitter_id"`

	Status        Status      `json:"status"`
	Credibility   Credibility `json:"credibility,omitempty"`
	VerifierID    *id.UserID  `json:"verifier_id,omitempty"`
	VerifierNotes string      `json:"verifier_notes,omitempty"`
	VerifiedAt    *time.Time  `json:"verified_at,omitempty"`

	ReviewHistory []ReviewEntry `json:"review_history"`

	Version   uint64    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSubmission constructs a pending submission and records the initial
// history entry.
func NewSubmission(submissionID id.SubmissionID, submitterID id.UserID, url, fileReference, title, publisher string, country id.Country, category Category, now time.Time) (*Submission, error) {
	title = strings.TrimSpace(title)
	publisher = strings.TrimSpace(publisher)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title cannot be empty")
	}
	if url == "" && fileReference == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "either url or file_reference is required")
	}
	if country.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "country is required")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid category")
	}
	if submitterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submitter_id is required")
	}
	return &Submission{
		ID:            submissionID,
		URL:           url,
		FileReference: fileReference,
		Title:         title,
		Publisher:     publisher,
		Country:       country,
		Category:      category,
		SubmitterID:   submitterID,
		Status:        StatusPending,
		ReviewHistory: []ReviewEntry{{
			ActorID:   submitterID,
			Action:    ReviewActionSubmitted,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasOutcome reports whether the submission already sits in exactly the
// requested terminal state. A repeated identical verify call is a no-op.
// Non-terminal targets never match; pending is not an outcome.
func (s *Submission) HasOutcome(target Status, credibility Credibility) bool {
	if !target.IsTerminal() {
		return false
	}
	if s.Status != target {
		return false
	}
	if target == StatusApproved {
		return s.Credibility == credibility
	}
	return true
}

// CanTransition checks whether a transition to the target state is legal.
// allowOverride permits terminal-to-terminal transitions (admin capability).
// Call HasOutcome first; an identical outcome is not a transition.
func (s *Submission) CanTransition(target Status, credibility Credibility, allowOverride bool) error {
	if !target.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidInput, "target status must be approved or rejected")
	}
	if target == StatusApproved && credibility == CredibilityUnset {
		return dErrors.New(dErrors.CodeInvalidInput, "credibility is required when approving")
	}
	if target == StatusRejected && credibility != CredibilityUnset {
		return dErrors.New(dErrors.CodeInvalidInput, "credibility cannot be set when rejecting")
	}
	if s.Status.IsTerminal() && !allowOverride {
		return dErrors.New(dErrors.CodeConflict, "submission already reviewed with a different outcome")
	}
	return nil
}

// ApplyTransition mutates the workflow fields and appends the history entry.
// Call CanTransition first; this method assumes a legal transition.
func (s *Submission) ApplyTransition(actorID id.UserID, target Status, credibility Credibility, notes string, now time.Time) {
	action := ReviewActionApproved
	if target == StatusRejected {
		action = ReviewActionRejected
	}
	if s.Status.IsTerminal() {
		action = ReviewActionOverridden
	}

	s.Status = target
	s.Credibility = credibility
	s.VerifierID = &actorID
	s.VerifierNotes = notes
	s.VerifiedAt = &now
	s.UpdatedAt = now
	s.ReviewHistory = append(s.ReviewHistory, ReviewEntry{
		ActorID:   actorID,
		Action:    action,
		Notes:     notes,
		Timestamp: now,
	})
}

// Clone returns a deep copy so stores can hand out snapshots without sharing
// the history slice.
func (s *Submission) Clone() *Submission {
	cp := *s
	if s.VerifierID != nil {
		v := *s.VerifierID
		cp.VerifierID = &v
	}
	if s.VerifiedAt != nil {
		t := *s.VerifiedAt
		cp.VerifiedAt = &t
	}
	cp.ReviewHistory = append([]ReviewEntry(nil), s.ReviewHistory...)
	return &cp
}
