// Package metrics registers the Prometheus metrics for the certification
// core. Services hold a possibly-nil *Metrics; every increment helper is
// nil-safe so tests can pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	ProjectsCreated    prometheus.Counter
	EvidenceSubmitted  prometheus.Counter
	ReviewTransitions  *prometheus.CounterVec
	StageAdvances      *prometheus.CounterVec
	GateFailures       *prometheus.CounterVec
	CertificatesIssued prometheus.Counter
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		ProjectsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certtrust_projects_created_total",
			Help: "Total certification projects created.",
		}),
		EvidenceSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certtrust_evidence_submitted_total",
			Help: "Total evidence documents submitted.",
		}),
		ReviewTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrust_review_transitions_total",
			Help: "Indicator review transitions by target status.",
		}, []string{"status"}),
		StageAdvances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrust_stage_advances_total",
			Help: "Completed stage transitions by stage.",
		}, []string{"stage"}),
		GateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrust_gate_failures_total",
			Help: "Stage gate checks that did not hold, by stage.",
		}, []string{"stage"}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certtrust_certificates_issued_total",
			Help: "Total certificates issued.",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certtrust_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// IncProjectsCreated increments the project counter.
func (m *Metrics) IncProjectsCreated() {
	if m != nil {
		m.ProjectsCreated.Inc()
	}
}

// IncEvidenceSubmitted increments the evidence counter.
func (m *Metrics) IncEvidenceSubmitted() {
	if m != nil {
		m.EvidenceSubmitted.Inc()
	}
}

// IncReviewTransition counts a review transition to the given status.
func (m *Metrics) IncReviewTransition(status string) {
	if m != nil {
		m.ReviewTransitions.WithLabelValues(status).Inc()
	}
}

// IncStageAdvance counts a completed stage transition.
func (m *Metrics) IncStageAdvance(stage string) {
	if m != nil {
		m.StageAdvances.WithLabelValues(stage).Inc()
	}
}

// IncGateFailure counts an unmet gate check.
func (m *Metrics) IncGateFailure(stage string) {
	if m != nil {
		m.GateFailures.WithLabelValues(stage).Inc()
	}
}

// IncCertificatesIssued increments the certificate counter.
func (m *Metrics) IncCertificatesIssued() {
	if m != nil {
		m.CertificatesIssued.Inc()
	}
}

// ObserveHTTPDuration records one request's latency.
func (m *Metrics) ObserveHTTPDuration(route, status string, seconds float64) {
	if m != nil {
		m.HTTPDuration.WithLabelValues(route, status).Observe(seconds)
	}
}
