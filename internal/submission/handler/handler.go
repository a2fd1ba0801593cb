// Package handler wires submission CRUD endpoints to the submission service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"citeline/internal/submission"
	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	dErrors "citeline/pkg/domain-errors"
	"citeline/pkg/platform/httputil"
	"citeline/pkg/requestcontext"
)

// Service defines the interface for submission lifecycle operations.
type Service interface {
	Create(ctx context.Context, req submission.CreateRequest) (*models.Submission, error)
	Get(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	Delete(ctx context.Context, submissionID id.SubmissionID) error
}

// Handler wires submission endpoints to the submission service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a submission handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts submission endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/submissions", h.HandleCreate)
	r.Get("/submissions/{submissionID}", h.HandleGet)
	r.Delete("/submissions/{submissionID}", h.HandleDelete)
}

// CreateRequest is the wire shape of a new submission.
type CreateRequest struct {
	URL           string `json:"url,omitempty"`
	FileReference string `json:"file_reference,omitempty"`
	Title         string `json:"title"`
	Publisher     string `json:"publisher"`
	Country       string `json:"country"`
	Category      string `json:"category"`
}

// HandleCreate handles POST /submissions requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	country, err := id.ParseCountry(req.Country)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Create(ctx, submission.CreateRequest{
		URL:           req.URL,
		FileReference: req.FileReference,
		Title:         req.Title,
		Publisher:     req.Publisher,
		Country:       country,
		Category:      category,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submission create failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleGet handles GET /submissions/{submissionID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid submission id"))
		return
	}

	result, err := h.service.Get(r.Context(), submissionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleDelete handles DELETE /submissions/{submissionID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid submission id"))
		return
	}

	if err := h.service.Delete(ctx, submissionID); err != nil {
		h.logger.WarnContext(ctx, "submission delete failed",
			"request_id", requestcontext.RequestID(ctx),
			"submission_id", submissionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
