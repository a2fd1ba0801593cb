package audit

import (
	"context"
	"log/slog"

	"citeline/internal/submission/models"
)

// inboxDepth bounds how far persistence may lag behind the event stream
// before entries are shed.
const inboxDepth = 256

// Recorder turns committed domain events into audit entries. It satisfies
// the publisher interface the services fan out to, so recording rides the
// same path as live delivery. Enqueueing is non-blocking; if the worker
// cannot keep up, entries are dropped with a log line rather than stalling
// the mutation.
type Recorder struct {
	inbox  chan Entry
	logger *slog.Logger
}

type RecorderOption func(*Recorder)

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		inbox:  make(chan Entry, inboxDepth),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish enqueues the event's audit entry.
func (r *Recorder) Publish(ctx context.Context, event models.Event) {
	entry := Entry{
		Timestamp:    event.Submission.UpdatedAt,
		SubmissionID: event.Submission.ID,
		ActorID:      event.Submission.SubmitterID,
		Action:       string(event.Action),
		Status:       event.Submission.Status.String(),
		Credibility:  event.Submission.Credibility.String(),
		Country:      event.Submission.Country.String(),
	}
	if event.Submission.VerifierID != nil {
		entry.ActorID = *event.Submission.VerifierID
	}

	select {
	case r.inbox <- entry:
	default:
		r.logger.WarnContext(ctx, "audit inbox full, dropping entry",
			"submission_id", entry.SubmissionID.String(),
			"action", entry.Action,
		)
	}
}

// Inbox exposes the entry stream for the worker.
func (r *Recorder) Inbox() <-chan Entry {
	return r.inbox
}
