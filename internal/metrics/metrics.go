package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels attempts and analyses that completed.
	OutcomeSuccess = "success"
	// OutcomeRetry labels attempts that failed but will be retried.
	OutcomeRetry = "retry"
	// OutcomeError labels terminal failures.
	OutcomeError = "error"
	// OutcomeCancelled labels attempts abandoned by the caller.
	OutcomeCancelled = "cancelled"
)

var (
	requestAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medai_client",
			Name:      "request_attempts_total",
			Help:      "Outbound request attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medai_client",
			Name:      "analyses_total",
			Help:      "Image analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medai_client",
			Name:      "analysis_seconds",
			Help:      "End-to-end analysis latency in seconds, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
)

// Register attaches client collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestAttemptsTotal,
		analysesTotal,
		analysisDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAttempt records a single request attempt outcome.
func ObserveAttempt(outcome string) {
	requestAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysis records one logical analysis duration and outcome.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}
