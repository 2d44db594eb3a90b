package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the certificate subsystem.
type Metrics struct {
	Created     prometheus.Counter
	Issued      prometheus.Counter
	Revoked     prometheus.Counter
	Validations *prometheus.CounterVec
	ValidateDur prometheus.Histogram
}

// New creates and registers all certificate metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_certificates_created_total",
			Help: "Total number of certificate drafts created",
		}),
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		Revoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_validations_total",
			Help: "Public validation checks by outcome",
		}, []string{"outcome"}),
		ValidateDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_validation_duration_seconds",
			Help:    "Latency of public validation checks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveValidation records one validation check. Outcome is "valid" or the
// negative reason string. Nil-safe so services can run without metrics wired.
func (m *Metrics) ObserveValidation(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(outcome).Inc()
	m.ValidateDur.Observe(seconds)
}

// IncCreated increments the drafts-created counter. Nil-safe.
func (m *Metrics) IncCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

// IncIssued increments the issued counter. Nil-safe.
func (m *Metrics) IncIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

// IncRevoked increments the revoked counter. Nil-safe.
func (m *Metrics) IncRevoked() {
	if m != nil {
		m.Revoked.Inc()
	}
}
