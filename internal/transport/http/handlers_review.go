package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"certtrust/internal/evidence"
	"certtrust/internal/platform/middleware"
	"certtrust/internal/rbac"
	"certtrust/internal/review"
	dErrors "certtrust/pkg/domain-errors"
)

// ReviewService is the slice of the review service the review handlers
// need.
type ReviewService interface {
	SubmitEvidence(ctx context.Context, projectID, indicatorID, filename string, actor rbac.Actor) (evidence.Document, error)
	SetStatus(ctx context.Context, projectID, indicatorID string, newStatus review.Status, actor rbac.Actor, comment string) (review.IndicatorReview, error)
	Reopen(ctx context.Context, projectID, indicatorID string, actor rbac.Actor) (review.IndicatorReview, error)
	SetDocumentStatus(ctx context.Context, projectID, docID string, status evidence.Status, actor rbac.Actor, comment string) error
	List(ctx context.Context, projectID string) ([]review.IndicatorReview, error)
	ListDocuments(ctx context.Context, projectID, indicatorID string) ([]evidence.Document, error)
}

// ReviewHandler wires indicator review and document endpoints.
type ReviewHandler struct {
	reviews ReviewService
	logger  *slog.Logger
}

func NewReviewHandler(reviews ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// Register mounts review endpoints on the router.
func (h *ReviewHandler) Register(r chi.Router) {
	r.Get("/projects/{id}/reviews", h.handleList)
	r.Post("/projects/{id}/indicators/{ind}/evidence", h.handleSubmitEvidence)
	r.Post("/projects/{id}/indicators/{ind}/status", h.handleSetStatus)
	r.Post("/projects/{id}/indicators/{ind}/reopen", h.handleReopen)
	r.Get("/projects/{id}/documents", h.handleListDocuments)
	r.Post("/projects/{id}/documents/{doc}/status", h.handleSetDocumentStatus)
}

// SubmitEvidenceRequest is the HTTP request body for POST
// /projects/{id}/indicators/{ind}/evidence. The body carries metadata only;
// document content lives with the external upload collaborator.
type SubmitEvidenceRequest struct {
	Filename string `json:"filename"`
}

func (r *SubmitEvidenceRequest) Validate() error {
	r.Filename = strings.TrimSpace(r.Filename)
	if r.Filename == "" {
		return dErrors.New(dErrors.CodeValidation, "filename is required")
	}
	return nil
}

// SetStatusRequest is the HTTP request body for the review and document
// status endpoints.
type SetStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (r *SetStatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

func (h *ReviewHandler) handleList(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *ReviewHandler) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")
	indicatorID := chi.URLParam(r, "ind")

	var req SubmitEvidenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.reviews.SubmitEvidence(ctx, projectID, indicatorID, req.Filename, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "evidence submission refused",
			"request_id", middleware.GetRequestID(ctx),
			"project_id", projectID,
			"indicator_id", indicatorID,
			"error", err,
		)
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evidence submitted",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", projectID,
		"indicator_id", indicatorID,
		"document_id", doc.ID,
		"version", doc.Version,
	)
	WriteJSON(w, http.StatusCreated, doc)
}

func (h *ReviewHandler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")
	indicatorID := chi.URLParam(r, "ind")

	var req SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	rev, err := h.reviews.SetStatus(ctx, projectID, indicatorID, review.Status(req.Status), actor, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "review status change refused",
			"request_id", middleware.GetRequestID(ctx),
			"project_id", projectID,
			"indicator_id", indicatorID,
			"target_status", req.Status,
			"role", string(actor.Role),
			"error", err,
		)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rev)
}

func (h *ReviewHandler) handleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")
	indicatorID := chi.URLParam(r, "ind")

	rev, err := h.reviews.Reopen(ctx, projectID, indicatorID, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "review reopened",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", projectID,
		"indicator_id", indicatorID,
	)
	WriteJSON(w, http.StatusOK, rev)
}

func (h *ReviewHandler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.reviews.ListDocuments(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("indicator_id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *ReviewHandler) handleSetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")
	docID := chi.URLParam(r, "doc")

	var req SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.reviews.SetDocumentStatus(ctx, projectID, docID, evidence.Status(req.Status), actor, req.Comment); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
