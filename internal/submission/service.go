// Package submission owns the submission lifecycle outside of verification:
// intake, lookup, and deletion.
package submission

import (
	"context"
	"errors"
	"log/slog"

	"citeline/internal/notify"
	"citeline/internal/platform/metrics"
	"citeline/internal/points/ledger"
	pointmodels "citeline/internal/points/models"
	"citeline/internal/policy"
	"citeline/internal/submission/models"
	"citeline/internal/submission/store"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/platform/sentinel"
	"citeline/pkg/requestcontext"
)

// CreateRequest carries the fields a contributor supplies at intake.
type CreateRequest struct {
	URL           string
	FileReference string
	Title         string
	Publisher     string
	Country       id.Country
	Category      models.Category
}

// Service handles submission intake, lookup, and deletion.
type Service struct {
	submissions store.Store
	ledger      *ledger.Ledger
	publisher   notify.Publisher

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(submissions store.Store, pointLedger *ledger.Ledger, publisher notify.Publisher, opts ...Option) (*Service, error) {
	if submissions == nil {
		return nil, errors.New("submission store is required")
	}
	if pointLedger == nil {
		return nil, errors.New("point ledger is required")
	}
	if publisher == nil {
		return nil, errors.New("event publisher is required")
	}

	s := &Service{
		submissions: submissions,
		ledger:      pointLedger,
		publisher:   publisher,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create records a new pending submission for the authenticated actor,
// credits the base submission award, and announces it to verifier dashboards.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Submission, error) {
	submitterID := requestcontext.UserID(ctx)
	if submitterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	sub, err := models.NewSubmission(id.NewSubmissionID(), submitterID,
		req.URL, req.FileReference, req.Title, req.Publisher,
		req.Country, req.Category, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, s.translate(err)
	}
	s.metrics.IncrementSubmissionsCreated()

	if _, err := s.ledger.Award(ctx, submitterID, sub.ID, pointmodels.RuleBaseSubmission); err != nil {
		s.logger.ErrorContext(ctx, "award base submission",
			"error", err,
			"submission_id", sub.ID.String(),
			"user_id", submitterID.String(),
		)
	}

	s.publisher.Publish(ctx, models.Event{
		Action:     models.EventSubmissionCreated,
		Submission: *sub,
	})

	s.logger.InfoContext(ctx, "submission created",
		"submission_id", sub.ID.String(),
		"country", string(sub.Country),
		"category", sub.Category.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return sub, nil
}

// Get returns a snapshot of one submission.
func (s *Service) Get(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, s.translate(err)
	}
	return sub, nil
}

// Delete removes a submission. Submitters may delete their own pending
// submissions; admins may delete anything.
func (s *Service) Delete(ctx context.Context, submissionID id.SubmissionID) error {
	actor := policy.Actor{
		ID:      requestcontext.UserID(ctx),
		Role:    requestcontext.Role(ctx),
		Country: requestcontext.Country(ctx),
	}
	if actor.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	authorize := func(current *models.Submission) error {
		if !policy.CanDelete(actor, current) {
			return dErrors.New(dErrors.CodeForbidden, "actor may not delete this submission")
		}
		return nil
	}
	deleted, err := s.submissions.Delete(ctx, submissionID, authorize)
	if errors.Is(err, sentinel.ErrVersionMismatch) {
		// A concurrent transition committed first; re-check authorization
		// against the record as reviewed.
		deleted, err = s.submissions.Delete(ctx, submissionID, authorize)
	}
	if err != nil {
		return s.translate(err)
	}
	s.metrics.IncrementSubmissionsDeleted()

	s.publisher.Publish(ctx, models.Event{
		Action:     models.EventSubmissionDeleted,
		Submission: *deleted,
	})

	s.logger.InfoContext(ctx, "submission deleted",
		"submission_id", submissionID.String(),
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// translate maps store sentinels onto coded errors; coded errors pass through.
func (s *Service) translate(err error) error {
	var coded *dErrors.DomainError
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "submission not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "submission already exists")
	case errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.Wrap(err, dErrors.CodeConflict, "submission was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "submission storage")
	}
}
