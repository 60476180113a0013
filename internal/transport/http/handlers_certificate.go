package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certtrust/internal/certificate"
	"certtrust/internal/catalog"
	"certtrust/internal/platform/middleware"
	"certtrust/internal/rbac"
)

// CertificateService is the slice of the certificate service the handlers
// need.
type CertificateService interface {
	Issue(ctx context.Context, projectID string, actor rbac.Actor) (certificate.Certificate, error)
	Get(ctx context.Context, projectID string) (certificate.Certificate, error)
	GetByNumber(ctx context.Context, number string) (certificate.Certificate, error)
}

// CertificateHandler wires certificate and catalog endpoints.
type CertificateHandler struct {
	certs   CertificateService
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewCertificateHandler(certs CertificateService, cat *catalog.Catalog, logger *slog.Logger) *CertificateHandler {
	return &CertificateHandler{certs: certs, catalog: cat, logger: logger}
}

// Register mounts certificate endpoints on the router.
func (h *CertificateHandler) Register(r chi.Router) {
	r.Post("/projects/{id}/certificate", h.handleIssue)
	r.Get("/projects/{id}/certificate", h.handleGet)
	r.Get("/certificates/{number}", h.handleVerify)
	r.Get("/catalog", h.handleCatalog)
}

func (h *CertificateHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	projectID := chi.URLParam(r, "id")

	cert, err := h.certs.Issue(ctx, projectID, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate issuance refused",
			"request_id", middleware.GetRequestID(ctx),
			"project_id", projectID,
			"role", string(actor.Role),
			"error", err,
		)
		WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "certificate issued",
		"request_id", middleware.GetRequestID(ctx),
		"project_id", projectID,
		"number", cert.Number,
	)
	WriteJSON(w, http.StatusCreated, cert)
}

func (h *CertificateHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	cert, err := h.certs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, cert)
}

// handleVerify is the public lookup third parties use to check a
// certificate number.
func (h *CertificateHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	cert, err := h.certs.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, cert)
}

func (h *CertificateHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"principles": h.catalog.Principles()})
}
