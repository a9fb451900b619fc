package verification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records verification outcomes.
type MetricsRecorder interface {
	// RecordVerification records one finished run. form is empty when the
	// run failed; kind is empty when it succeeded.
	RecordVerification(form, kind string, elapsed time.Duration)
	// RecordPropertyFailure records the property a failed run stopped at.
	RecordPropertyFailure(property, kind string)
}

// NoopMetricsRecorder is used when metrics are disabled.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordVerification is a no-op.
func (n *NoopMetricsRecorder) RecordVerification(form, kind string, elapsed time.Duration) {}

// RecordPropertyFailure is a no-op.
func (n *NoopMetricsRecorder) RecordPropertyFailure(property, kind string) {}

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	verificationsTotal    *prometheus.CounterVec
	verificationDuration  *prometheus.HistogramVec
	propertyFailuresTotal *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a recorder registered with the
// default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a recorder registered
// with reg.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	verificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xades_verifications_total",
		Help: "Total signature verifications by resulting form or failure kind",
	}, []string{"result", "form", "kind"})

	verificationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xades_verification_duration_seconds",
		Help:    "Duration of signature verifications",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"result"})

	propertyFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xades_property_failures_total",
		Help: "Total verification failures by property and kind",
	}, []string{"property", "kind"})

	reg.MustRegister(
		verificationsTotal,
		verificationDuration,
		propertyFailuresTotal,
	)

	return &PrometheusMetricsRecorder{
		verificationsTotal:    verificationsTotal,
		verificationDuration:  verificationDuration,
		propertyFailuresTotal: propertyFailuresTotal,
	}
}

// RecordVerification records one finished run.
func (p *PrometheusMetricsRecorder) RecordVerification(form, kind string, elapsed time.Duration) {
	result := "valid"
	if kind != "" {
		result = "invalid"
	}
	p.verificationsTotal.WithLabelValues(result, form, kind).Inc()
	p.verificationDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// RecordPropertyFailure records the property a failed run stopped at.
func (p *PrometheusMetricsRecorder) RecordPropertyFailure(property, kind string) {
	if property == "" {
		property = "none"
	}
	p.propertyFailuresTotal.WithLabelValues(property, kind).Inc()
}

var (
	_ MetricsRecorder = (*NoopMetricsRecorder)(nil)
	_ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
)
