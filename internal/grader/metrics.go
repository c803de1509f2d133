package grader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for validationsTotal.
const (
	outcomePass   = "pass"
	outcomeFail   = "fail"
	outcomeCached = "cached"
	outcomeError  = "error"
)

type metrics struct {
	// validationsTotal counts submissions by mission and outcome
	validationsTotal *prometheus.CounterVec

	// validationDuration tracks evaluation latency, cache hits excluded
	validationDuration *prometheus.HistogramVec

	// checkpointsFailed counts failed checkpoints so struggling spots stand out
	checkpointsFailed *prometheus.CounterVec
}

// newMetrics builds the grader collectors. A nil registerer leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		validationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questcheck_validations_total",
			Help: "Total sketch validations by mission and outcome",
		}, []string{"mission", "outcome"}),
		validationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questcheck_validation_duration_seconds",
			Help:    "Sketch evaluation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
		}, []string{"mission"}),
		checkpointsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questcheck_checkpoints_failed_total",
			Help: "Total failed checkpoints by mission and checkpoint",
		}, []string{"mission", "checkpoint"}),
	}
}
