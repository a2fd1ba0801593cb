// Package batch coordinates admin bulk operations over many submissions.
//
// The flow is two-phase: preview reports the blast radius without mutating
// anything, and apply runs the per-item operation with failure isolation. An
// item's failure never aborts the batch; the caller always receives the full
// per-id outcome. Distinct ids are mutated in parallel; per-id atomicity is
// the store's concern, not the coordinator's.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"citeline/internal/platform/metrics"
	"citeline/internal/submission/models"
	"citeline/internal/submission/store"
	"citeline/internal/verification"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/requestcontext"
)

// previewSampleSize caps how many full records a preview returns.
const previewSampleSize = 10

// Operation is one of the supported bulk actions.
type Operation string

const (
	OperationApprove      Operation = "approve"
	OperationReject       Operation = "reject"
	OperationDelete       Operation = "delete"
	OperationUpdateStatus Operation = "updateStatus"
)

// ParseOperation validates an external operation name.
func ParseOperation(v string) (Operation, error) {
	switch Operation(v) {
	case OperationApprove, OperationReject, OperationDelete, OperationUpdateStatus:
		return Operation(v), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "operation must be approve, reject, delete, or updateStatus")
}

// StateMachine is the verification surface the coordinator delegates
// transitions to.
type StateMachine interface {
	Verify(ctx context.Context, submissionID id.SubmissionID, req verification.Request) (*models.Submission, error)
}

// Remover is the deletion surface the coordinator delegates removals to.
// Per-item authorization lives behind it.
type Remover interface {
	Delete(ctx context.Context, submissionID id.SubmissionID) error
}

// Preview is the non-mutating blast-radius report for a candidate batch.
type Preview struct {
	Total    int                                 `json:"total"`
	Found    int                                 `json:"found"`
	Missing  []id.SubmissionID                   `json:"missing,omitempty"`
	ByStatus map[models.Status]int               `json:"by_status"`
	Groups   map[models.Status][]id.SubmissionID `json:"groups"`
	Sample   []*models.Submission                `json:"sample"`
}

// Failure is one item that could not be mutated, with a caller-readable reason.
type Failure struct {
	ID     id.SubmissionID `json:"id"`
	Reason string          `json:"reason"`
}

// Result is the aggregate outcome of an apply. It is always complete: every
// requested id lands in exactly one of the two lists.
type Result struct {
	Succeeded []id.SubmissionID `json:"succeeded"`
	Failed    []Failure         `json:"failed"`
}

// ApplyRequest describes one bulk mutation.
type ApplyRequest struct {
	Operation   Operation
	IDs         []id.SubmissionID
	Notes       string
	Status      models.Status
	Credibility models.Credibility
}

// Coordinator runs bulk previews and applies.
type Coordinator struct {
	submissions store.Store
	machine     StateMachine
	remover     Remover
	parallelism int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithParallelism bounds concurrent per-item mutations during apply.
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func NewCoordinator(submissions store.Store, machine StateMachine, remover Remover, opts ...Option) (*Coordinator, error) {
	if submissions == nil {
		return nil, errors.New("submission store is required")
	}
	if machine == nil {
		return nil, errors.New("state machine is required")
	}
	if remover == nil {
		return nil, errors.New("remover is required")
	}

	c := &Coordinator{
		submissions: submissions,
		machine:     machine,
		remover:     remover,
		parallelism: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Preview loads the current state of each id and groups it by status. It
// never mutates; a later apply re-checks everything against fresh state, so a
// stale preview cannot be blindly trusted.
func (c *Coordinator) Preview(ctx context.Context, ids []id.SubmissionID) (*Preview, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submission ids are required")
	}

	found, err := c.submissions.ListByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load submissions for preview")
	}

	present := make(map[id.SubmissionID]struct{}, len(found))
	preview := &Preview{
		Total:    len(ids),
		Found:    len(found),
		ByStatus: make(map[models.Status]int),
		Groups:   make(map[models.Status][]id.SubmissionID),
	}
	for _, sub := range found {
		present[sub.ID] = struct{}{}
		preview.ByStatus[sub.Status]++
		preview.Groups[sub.Status] = append(preview.Groups[sub.Status], sub.ID)
		if len(preview.Sample) < previewSampleSize {
			preview.Sample = append(preview.Sample, sub)
		}
	}
	for _, submissionID := range ids {
		if _, ok := present[submissionID]; !ok {
			preview.Missing = append(preview.Missing, submissionID)
		}
	}
	return preview, nil
}

// Apply runs the operation against every id with failure isolation. The
// returned Result is ordered by the input; it never carries an error for an
// individual item, only the aggregate shape.
func (c *Coordinator) Apply(ctx context.Context, req ApplyRequest) (*Result, error) {
	ids := dedupe(req.IDs)
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submission ids are required")
	}
	itemReq, err := c.itemRequest(req)
	if err != nil {
		return nil, err
	}

	// One timestamp for the whole batch keeps history entries comparable.
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))

	var mu sync.Mutex
	outcomes := make(map[id.SubmissionID]error, len(ids))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.parallelism)
	for _, submissionID := range ids {
		submissionID := submissionID
		group.Go(func() error {
			itemErr := c.applyOne(groupCtx, req.Operation, submissionID, itemReq)
			mu.Lock()
			outcomes[submissionID] = itemErr
			mu.Unlock()
			return nil
		})
	}
	// Items never surface errors through the group; Wait only joins.
	_ = group.Wait()

	result := &Result{}
	for _, submissionID := range ids {
		if itemErr := outcomes[submissionID]; itemErr != nil {
			c.metrics.IncrementBatchItems("failed")
			result.Failed = append(result.Failed, Failure{
				ID:     submissionID,
				Reason: reasonOf(itemErr),
			})
			continue
		}
		c.metrics.IncrementBatchItems("succeeded")
		result.Succeeded = append(result.Succeeded, submissionID)
	}

	c.logger.InfoContext(ctx, "batch applied",
		"operation", string(req.Operation),
		"total", len(ids),
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// itemRequest translates the batch operation into the per-item verification
// request, or nil for delete. Approvals without an explicit credibility
// default to credible.
func (c *Coordinator) itemRequest(req ApplyRequest) (*verification.Request, error) {
	target := req.Status
	credibility := req.Credibility
	switch req.Operation {
	case OperationApprove:
		target = models.StatusApproved
		if credibility == models.CredibilityUnset {
			credibility = models.CredibilityCredible
		}
	case OperationReject:
		target = models.StatusRejected
		credibility = models.CredibilityUnset
	case OperationUpdateStatus:
		if !target.IsValid() || target == models.StatusPending {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "updateStatus requires a terminal status")
		}
		if target == models.StatusApproved && credibility == models.CredibilityUnset {
			credibility = models.CredibilityCredible
		}
	case OperationDelete:
		return nil, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported operation")
	}
	return &verification.Request{
		Target:      target,
		Credibility: credibility,
		Notes:       req.Notes,
		Announce:    models.EventSubmissionUpdated,
	}, nil
}

func (c *Coordinator) applyOne(ctx context.Context, op Operation, submissionID id.SubmissionID, itemReq *verification.Request) error {
	if op == OperationDelete {
		return c.remover.Delete(ctx, submissionID)
	}
	_, err := c.machine.Verify(ctx, submissionID, *itemReq)
	return err
}

// reasonOf extracts the caller-readable failure reason.
func reasonOf(err error) string {
	if msg := dErrors.MessageOf(err); msg != "" {
		return msg
	}
	return string(dErrors.CodeOf(err))
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []id.SubmissionID) []id.SubmissionID {
	seen := make(map[id.SubmissionID]struct{}, len(ids))
	out := ids[:0:0]
	for _, submissionID := range ids {
		if _, ok := seen[submissionID]; ok {
			continue
		}
		seen[submissionID] = struct{}{}
		out = append(out, submissionID)
	}
	return out
}
