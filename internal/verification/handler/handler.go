// Package handler wires the verification endpoint to the state machine.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citeline/internal/submission/models"
	"citeline/internal/verification"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/platform/httputil"
	"citeline/pkg/requestcontext"
)

// Service defines the interface for verification operations.
type Service interface {
	Verify(ctx context.Context, submissionID id.SubmissionID, req verification.Request) (*models.Submission, error)
}

// Handler wires the verification endpoint to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/submissions/{submissionID}/verify", h.HandleVerify)
}

// VerifyRequest is the wire shape of one verification decision.
type VerifyRequest struct {
	Status      string `json:"status"`
	Credibility string `json:"credibility,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// HandleVerify handles PUT /submissions/{submissionID}/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid submission id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	target, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credibility := models.CredibilityUnset
	if req.Credibility != "" {
		if credibility, err = models.ParseCredibility(req.Credibility); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	result, err := h.service.Verify(ctx, submissionID, verification.Request{
		Target:      target,
		Credibility: credibility,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestID,
			"submission_id", submissionID.String(),
			"target", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification applied",
		"request_id", requestID,
		"submission_id", submissionID.String(),
		"status", result.Status.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
