package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"certtrust/internal/platform/middleware"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/workflow"
	dErrors "certtrust/pkg/domain-errors"
)

// WorkflowService is the slice of the workflow engine the project handlers
// need.
type WorkflowService interface {
	CreateProject(ctx context.Context, providerID, provider, name string, actor rbac.Actor) (project.Project, error)
	Advance(ctx context.Context, projectID string, actor rbac.Actor) (project.Project, error)
	RecordAuditDecision(ctx context.Context, projectID string, decision workflow.Decision, note string, actor rbac.Actor) (workflow.AuditDecision, error)
	GetProgress(ctx context.Context, projectID string) (workflow.Progress, error)
	GetProject(ctx context.Context, projectID string) (project.Project, error)
	ListProjects(ctx context.Context, providerID string) ([]project.Project, error)
	StageHistory(ctx context.Context, projectID string) ([]project.StageRecord, error)
	GetDecision(ctx context.Context, projectID string) (workflow.AuditDecision, error)
}

// ProjectHandler wires project and workflow endpoints.
type ProjectHandler struct {
	workflow WorkflowService
	logger   *slog.Logger
}

func NewProjectHandler(workflow WorkflowService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{workflow: workflow, logger: logger}
}

// Register mounts project endpoints on the router.
func (h *ProjectHandler) Register(r chi.Router) {
	r.Post("/projects", h.handleCreate)
	r.Get("/projects", h.handleList)
	r.Get("/projects/{id}", h.handleGet)
	r.Get("/projects/{id}/stages", h.handleStages)
	r.Get("/projects/{id}/progress", h.handleProgress)
	r.Post("/projects/{id}/advance", h.handleAdvance)
	r.Post("/projects/{id}/audit-decision", h.handleRecordDecision)
	r.Get("/projects/{id}/audit-decision", h.handleGetDecision)
}

// CreateProjectRequest is the HTTP request body for POST /projects.
type CreateProjectRequest struct {
	ProviderID string `json:"provider_id"`
	Provider   string `json:"provider"`
	Name       string `json:"name"`
}

func (r *CreateProjectRequest) Validate() error {
	r.ProviderID = strings.TrimSpace(r.ProviderID)
	r.Provider = strings.TrimSpace(r.Provider)
	r.Name = strings.TrimSpace(r.Name)
	if r.ProviderID == "" {
		return dErrors.New(dErrors.CodeValidation, "provider_id is required")
	}
	if r.Provider == "" {
		return dErrors.New(dErrors.CodeValidation, "provider is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// RecordDecisionRequest is the HTTP request body for POST
// /projects/{id}/audit-decision.
type RecordDecisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

func (r *RecordDecisionRequest) Validate() error {
	r.Decision = strings.TrimSpace(r.Decision)
	if r.Decision == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

func (h *ProjectHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	start := time.Now()

	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.workflow.CreateProject(ctx, req.ProviderID, req.Provider, req.Name, actor)
	if err != nil {
		h.logger.ErrorContext(ctx, "project creation failed",
			"request_id", middleware.GetRequestID(ctx),
			"provider_id", req.ProviderID,
			"error", err,
		)
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "project created",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", p.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	WriteJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) handleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.workflow.ListProjects(r.Context(), r.URL.Query().Get("provider_id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *ProjectHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.workflow.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) handleStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.workflow.StageHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

func (h *ProjectHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	prog, err := h.workflow.GetProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, prog)
}

func (h *ProjectHandler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")

	p, err := h.workflow.Advance(ctx, projectID, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "stage advance refused",
			"request_id", middleware.GetRequestID(ctx),
			"project_id", projectID,
			"role", string(actor.Role),
			"error", err,
		)
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stage advanced",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", projectID,
		"stage", string(p.CurrentStage().StageID),
	)
	WriteJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")

	var req RecordDecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	d, err := h.workflow.RecordAuditDecision(ctx, projectID, workflow.Decision(req.Decision), req.Note, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit decision recorded",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", projectID,
		"decision", string(d.Decision),
	)
	WriteJSON(w, http.StatusOK, d)
}

func (h *ProjectHandler) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.workflow.GetDecision(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, d)
}
