// Package handler wires the admin batch endpoints to the coordinator.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citeline/internal/batch"
	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/platform/httputil"
	strutil "citeline/pkg/platform/strings"
	"citeline/pkg/requestcontext"
)

// Coordinator defines the interface for bulk preview and apply.
type Coordinator interface {
	Preview(ctx context.Context, ids []id.SubmissionID) (*batch.Preview, error)
	Apply(ctx context.Context, req batch.ApplyRequest) (*batch.Result, error)
}

// Handler wires batch endpoints to the coordinator.
type Handler struct {
	coordinator Coordinator
	logger      *slog.Logger
}

// New constructs a batch handler with its dependencies.
func New(coordinator Coordinator, logger *slog.Logger) *Handler {
	return &Handler{coordinator: coordinator, logger: logger}
}

// Register mounts batch endpoints on the router. The caller is responsible
// for wrapping the router in the admin requirement.
func (h *Handler) Register(r chi.Router) {
	r.Post("/batch/preview", h.HandlePreview)
	r.Post("/batch/apply", h.HandleApply)
}

// PreviewRequest is the wire shape of a preview call.
type PreviewRequest struct {
	SubmissionIDs []string `json:"submission_ids"`
}

// ApplyRequest is the wire shape of an apply call.
type ApplyRequest struct {
	Operation     string   `json:"operation"`
	SubmissionIDs []string `json:"submission_ids"`
	Notes         string   `json:"verifier_notes,omitempty"`
	Status        string   `json:"status,omitempty"`
	Credibility   string   `json:"credibility,omitempty"`
}

// ApplyResponse wraps the aggregate result with a human-readable summary.
type ApplyResponse struct {
	Succeeded []id.SubmissionID `json:"succeeded"`
	Failed    []batch.Failure   `json:"failed"`
	Message   string            `json:"message"`
}

// HandlePreview handles POST /admin/batch/preview requests.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PreviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ids, err := parseIDs(req.SubmissionIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	preview, err := h.coordinator.Preview(ctx, ids)
	if err != nil {
		h.logger.WarnContext(ctx, "batch preview failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}

// HandleApply handles POST /admin/batch/apply requests.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ApplyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	applyReq, err := h.parseApply(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.coordinator.Apply(ctx, applyReq)
	if err != nil {
		h.logger.WarnContext(ctx, "batch apply failed",
			"request_id", requestID,
			"operation", req.Operation,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch apply handled",
		"request_id", requestID,
		"operation", req.Operation,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ApplyResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Message: fmt.Sprintf("%s applied to %d of %d submissions",
			req.Operation, len(result.Succeeded), len(result.Succeeded)+len(result.Failed)),
	})
}

func (h *Handler) parseApply(req ApplyRequest) (batch.ApplyRequest, error) {
	var out batch.ApplyRequest

	operation, err := batch.ParseOperation(req.Operation)
	if err != nil {
		return out, err
	}
	ids, err := parseIDs(req.SubmissionIDs)
	if err != nil {
		return out, err
	}

	out = batch.ApplyRequest{
		Operation: operation,
		IDs:       ids,
		Notes:     req.Notes,
	}
	if req.Status != "" {
		if out.Status, err = models.ParseStatus(req.Status); err != nil {
			return batch.ApplyRequest{}, err
		}
	}
	if req.Credibility != "" {
		if out.Credibility, err = models.ParseCredibility(req.Credibility); err != nil {
			return batch.ApplyRequest{}, err
		}
	}
	return out, nil
}

func parseIDs(raw []string) ([]id.SubmissionID, error) {
	raw = strutil.DedupeAndTrim(raw)
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submission_ids are required")
	}
	ids := make([]id.SubmissionID, 0, len(raw))
	for _, s := range raw {
		submissionID, err := id.ParseSubmissionID(s)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid submission id %q", s))
		}
		ids = append(ids, submissionID)
	}
	return ids, nil
}
