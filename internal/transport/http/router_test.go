package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrust/internal/catalog"
	"certtrust/internal/certificate"
	"certtrust/internal/evidence"
	"certtrust/internal/events"
	"certtrust/internal/project"
	"certtrust/internal/review"
	"certtrust/internal/workflow"
)

// newTestServer wires the full router over in-memory stores, with header
// actor resolution (no token validator).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Default()
	projects := project.NewInMemoryStore()
	reviews := review.NewInMemoryStore()
	documents := evidence.NewInMemoryStore()
	decisions := workflow.NewInMemoryDecisionStore()
	certs := certificate.NewInMemoryStore()
	locks := project.NewLocks()
	publisher := events.Nop{}

	reviewSvc := review.NewService(cat, projects, reviews, documents, locks, publisher, logger, nil)
	workflowSvc := workflow.NewService(cat, projects, reviews, documents, decisions, locks, publisher, nil, 0, logger, nil)
	certSvc := certificate.NewService(projects, decisions, certs, locks, publisher, 24, logger, nil)

	router := NewRouter(Deps{
		Projects:     NewProjectHandler(workflowSvc, logger),
		Reviews:      NewReviewHandler(reviewSvc, logger),
		Certificates: NewCertificateHandler(certSvc, cat, logger),
		Logger:       logger,
		Metrics:      nil,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// do sends a request with the given actor headers and decodes the JSON
// response into out when out is non-nil.
func do(t *testing.T, srv *httptest.Server, method, path, role string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
		req.Header.Set("X-Actor-Id", role+"-1")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createProject(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var p project.Project
	resp := do(t, srv, http.MethodPost, "/projects", "mmp", map[string]string{
		"provider_id": "prov-1",
		"provider":    "Acme Mobile Money",
		"name":        "Acme MMC 2026",
	}, &p)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return p.ID
}

func TestRouterAuthentication(t *testing.T) {
	srv := newTestServer(t)

	t.Run("no actor headers", func(t *testing.T) {
		resp := do(t, srv, http.MethodGet, "/projects", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown role", func(t *testing.T) {
		resp := do(t, srv, http.MethodGet, "/projects", "wizard", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("healthz needs no actor", func(t *testing.T) {
		resp := do(t, srv, http.MethodGet, "/healthz", "", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestProjectEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("create and fetch", func(t *testing.T) {
		id := createProject(t, srv)

		var p project.Project
		resp := do(t, srv, http.MethodGet, "/projects/"+id, "mmp", nil, &p)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Acme Mobile Money", p.Provider)
		assert.Equal(t, project.StageApplication, p.CurrentStage().StageID)
	})

	t.Run("create rejects missing fields", func(t *testing.T) {
		var envelope errorEnvelope
		resp := do(t, srv, http.MethodPost, "/projects", "mmp", map[string]string{
			"provider_id": "prov-1",
		}, &envelope)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation", envelope.Error)
	})

	t.Run("assessor may not create", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/projects", "assessor", map[string]string{
			"provider_id": "prov-1",
			"provider":    "Acme",
			"name":        "n",
		}, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown project is 404", func(t *testing.T) {
		resp := do(t, srv, http.MethodGet, "/projects/nope", "mmp", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("stage history", func(t *testing.T) {
		id := createProject(t, srv)
		var body struct {
			Stages []project.StageRecord `json:"stages"`
		}
		resp := do(t, srv, http.MethodGet, "/projects/"+id+"/stages", "mmp", nil, &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body.Stages, len(project.Sequence))
	})
}

func TestReviewEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createProject(t, srv)

	t.Run("submit evidence", func(t *testing.T) {
		var doc evidence.Document
		resp := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/FIN-001/evidence", id), "mmp",
			map[string]string{"filename": "audit-report.pdf"}, &doc)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, 1, doc.Version)
	})

	t.Run("approve with evidence", func(t *testing.T) {
		var rev review.IndicatorReview
		resp := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/FIN-001/status", id), "assessor",
			map[string]string{"status": "approved"}, &rev)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, review.StatusApproved, rev.Status)
	})

	t.Run("approval without evidence is 409 with details", func(t *testing.T) {
		do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/AML-001/evidence", id), "mmp",
			map[string]string{"filename": "kyc.pdf"}, nil)
		// Move to in-progress happened on submit; strip evidence via reopen
		// is not possible pre-terminal, so use a fresh indicator forced
		// through the invalid jump instead.
		var envelope errorEnvelope
		resp := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/CS-001/status", id), "assessor",
			map[string]string{"status": "approved"}, &envelope)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "invalid_state", envelope.Error)
	})

	t.Run("consultant verdict is 403", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/AML-001/status", id), "consultant",
			map[string]string{"status": "approved"}, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("list reviews", func(t *testing.T) {
		var body struct {
			Reviews []review.IndicatorReview `json:"reviews"`
		}
		resp := do(t, srv, http.MethodGet, "/projects/"+id+"/reviews", "assessor", nil, &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body.Reviews, catalog.Default().Size())
	})

	t.Run("reopen approved review as admin", func(t *testing.T) {
		var rev review.IndicatorReview
		resp := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/FIN-001/reopen", id), "admin", nil, &rev)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, review.StatusPending, rev.Status)
		assert.Empty(t, rev.EvidenceIDs)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost,
			srv.URL+fmt.Sprintf("/projects/%s/indicators/FIN-001/evidence", id),
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Actor-Role", "mmp")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCertificationLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createProject(t, srv)

	// Application stage: needs at least one document.
	resp := do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "mmp", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	do(t, srv, http.MethodPost,
		fmt.Sprintf("/projects/%s/indicators/FIN-001/evidence", id), "mmp",
		map[string]string{"filename": "application.pdf"}, nil)
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "mmp", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Document review gate names the pending mandatory indicators.
	var envelope errorEnvelope
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "assessor", nil, &envelope)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "gate_not_satisfied", envelope.Error)
	assert.Contains(t, envelope.Details, "AML-001")

	// Work every indicator through submission and approval.
	for _, ind := range catalog.Default().Indicators() {
		do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/%s/evidence", id, ind.ID), "mmp",
			map[string]string{"filename": ind.ID + ".pdf"}, nil)
	}
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "assessor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, ind := range catalog.Default().Indicators() {
		r := do(t, srv, http.MethodPost,
			fmt.Sprintf("/projects/%s/indicators/%s/status", id, ind.ID), "assessor",
			map[string]string{"status": "approved"}, nil)
		require.Equal(t, http.StatusOK, r.StatusCode, ind.ID)
	}

	var prog workflow.Progress
	resp = do(t, srv, http.MethodGet, "/projects/"+id+"/progress", "mmp", nil, &prog)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, prog.Percent)

	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "assessor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Audit stage: certificate before a decision is premature.
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/certificate", "auditor", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/audit-decision", "auditor",
		map[string]string{"decision": "approve", "note": "clean audit"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/advance", "auditor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cert certificate.Certificate
	resp = do(t, srv, http.MethodPost, "/projects/"+id+"/certificate", "auditor", nil, &cert)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Regexp(t, `^MMC\d{11}$`, cert.Number)

	// Issued certificate is publicly verifiable and the project is archived.
	var got certificate.Certificate
	resp = do(t, srv, http.MethodGet, "/certificates/"+cert.Number, "mmp", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, got.ProjectID)

	var p project.Project
	resp = do(t, srv, http.MethodGet, "/projects/"+id, "mmp", nil, &p)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, project.StateCertified, p.State)
}

func TestCatalogEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var body struct {
		Principles []catalog.Principle `json:"principles"`
	}
	resp := do(t, srv, http.MethodGet, "/catalog", "mmp", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Principles, 8)
}
