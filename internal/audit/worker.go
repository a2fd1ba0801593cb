package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit entries from the recorder and persists them. A store
// failure is logged and the entry dropped; the trail is best-effort and must
// never wedge the inbox.
type Worker struct {
	store  Store
	inbox  <-chan Entry
	logger *slog.Logger
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func NewWorker(store Store, inbox <-chan Entry, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  store,
		inbox:  inbox,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.store.Append(ctx, entry); err != nil {
				w.logger.ErrorContext(ctx, "persist audit entry",
					"error", err,
					"submission_id", entry.SubmissionID.String(),
				)
			}
		}
	}
}
