// Package verification owns the submission state machine: it validates a
// requested status/credibility transition against the current record and the
// actor's capabilities, applies it atomically, and triggers the point awards
// and the live event the transition implies.
package verification

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

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

// errIdenticalOutcome short-circuits Execute when the submission already
// carries the requested outcome. It never escapes Verify.
var errIdenticalOutcome = errors.New("identical outcome already applied")

// Request is one verification decision.
type Request struct {
	Target      models.Status
	Credibility models.Credibility
	Notes       string

	// Announce overrides the event action published for the committed
	// transition. Empty means submission-verified; the batch coordinator
	// announces its transitions as submission-updated.
	Announce models.EventAction
}

// Service applies verification decisions.
type Service struct {
	submissions store.Store
	ledger      *ledger.Ledger
	publisher   notify.Publisher

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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
		tracer:      otel.Tracer("citeline/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify applies one decision to one submission. The decision is validated
// and committed as a single atomic unit against concurrent decisions on the
// same id; awards and the live event follow only a real transition. A repeat
// of an already-applied outcome returns the current record unchanged.
func (s *Service) Verify(ctx context.Context, submissionID id.SubmissionID, req Request) (*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Verify",
		trace.WithAttributes(
			attribute.String("submission.id", submissionID.String()),
			attribute.String("verification.target", req.Target.String()),
		))
	defer span.End()

	actor := actorFrom(ctx)
	if actor.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	committed, err := s.transition(ctx, submissionID, actor, req)
	if errors.Is(err, errIdenticalOutcome) {
		span.SetAttributes(attribute.Bool("verification.noop", true))
		return s.submissions.FindByID(ctx, submissionID)
	}
	if errors.Is(err, sentinel.ErrVersionMismatch) {
		// A concurrent decision committed first. Re-run once against the new
		// record; the usual outcome is the idempotency or conflict path.
		committed, err = s.transition(ctx, submissionID, actor, req)
		if errors.Is(err, errIdenticalOutcome) {
			span.SetAttributes(attribute.Bool("verification.noop", true))
			return s.submissions.FindByID(ctx, submissionID)
		}
	}
	if err != nil {
		return nil, s.translate(err)
	}

	s.award(ctx, committed, actor, req.Target)
	s.metrics.IncrementSubmissionsVerified(req.Target.String())

	action := req.Announce
	if action == "" {
		action = models.EventSubmissionVerified
	}
	s.publisher.Publish(ctx, models.Event{
		Action:     action,
		Submission: *committed,
	})

	s.logger.InfoContext(ctx, "submission verified",
		"submission_id", submissionID.String(),
		"status", committed.Status.String(),
		"credibility", committed.Credibility.String(),
		"verifier_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return committed, nil
}

// transition runs one atomic validate-then-mutate attempt.
func (s *Service) transition(ctx context.Context, submissionID id.SubmissionID, actor policy.Actor, req Request) (*models.Submission, error) {
	now := requestcontext.Now(ctx)
	return s.submissions.Execute(ctx, submissionID,
		func(current *models.Submission) error {
			if !policy.CanVerify(actor, current) {
				return dErrors.New(dErrors.CodeForbidden, "actor may not verify submissions for this country")
			}
			if current.HasOutcome(req.Target, req.Credibility) {
				return errIdenticalOutcome
			}
			if current.Status.IsTerminal() && !policy.CanOverride(actor) {
				return dErrors.New(dErrors.CodeConflict, "submission already reviewed with a different outcome")
			}
			return current.CanTransition(req.Target, req.Credibility, policy.CanOverride(actor))
		},
		func(current *models.Submission) {
			current.ApplyTransition(actor.ID, req.Target, req.Credibility, req.Notes, now)
		})
}

// award applies the point consequences of a committed transition. The ledger
// deduplicates per (user, submission, rule), so an admin override cycling a
// submission back into approved cannot double-pay the submitter.
func (s *Service) award(ctx context.Context, committed *models.Submission, actor policy.Actor, target models.Status) {
	if target == models.StatusRejected {
		return
	}
	if _, err := s.ledger.Award(ctx, committed.SubmitterID, committed.ID, pointmodels.RuleApprovalBonus); err != nil {
		s.logger.ErrorContext(ctx, "award approval bonus",
			"error", err,
			"submission_id", committed.ID.String(),
			"user_id", committed.SubmitterID.String(),
		)
	}
	if _, err := s.ledger.Award(ctx, actor.ID, committed.ID, pointmodels.RuleVerifierReward); err != nil {
		s.logger.ErrorContext(ctx, "award verifier reward",
			"error", err,
			"submission_id", committed.ID.String(),
			"user_id", actor.ID.String(),
		)
	}
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
	case errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.Wrap(err, dErrors.CodeConflict, "submission was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verify submission")
	}
}

func actorFrom(ctx context.Context) policy.Actor {
	return policy.Actor{
		ID:      requestcontext.UserID(ctx),
		Role:    requestcontext.Role(ctx),
		Country: requestcontext.Country(ctx),
	}
}
