// Package metrics holds the Prometheus collectors for the login flow and the
// access guard. Collectors register with the default registry on import.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_portal"

// Login outcomes.
const (
	OutcomeAdmitted         = "admitted"
	OutcomeDomainRejected   = "domain_rejected"
	OutcomeProviderError    = "provider_error"
	OutcomeStateMismatch    = "state_mismatch"
	OutcomeStateReplayed    = "state_replayed"
	OutcomeMissingCode      = "missing_code"
	OutcomeProviderRejected = "provider_rejected"
	OutcomeNetwork          = "network"
	OutcomeProfile          = "profile_unavailable"
	OutcomeInternal         = "internal"
)

var (
	// LoginsStarted counts authorization redirects issued.
	LoginsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "started_total",
			Help:      "Total number of authorization redirects issued",
		},
	)

	// LoginOutcomes counts completed callbacks by outcome.
	LoginOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "outcomes_total",
			Help:      "Total number of login callbacks by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderDuration measures calls to the identity provider.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of identity provider calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "result"}, // operation: exchange, userinfo; result: ok, error
	)

	// GuardDecisions counts access guard results.
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Total number of access guard decisions by result",
		},
		[]string{"result"}, // result: allow, login, forbidden
	)

	// Logouts counts session clears.
	Logouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Total number of logouts",
		},
	)
)

// RecordLoginOutcome records one finished callback.
func RecordLoginOutcome(outcome string) {
	LoginOutcomes.WithLabelValues(outcome).Inc()
}

// RecordGuardDecision records one access guard result.
func RecordGuardDecision(result string) {
	GuardDecisions.WithLabelValues(result).Inc()
}

// ObserveProvider records the duration of a provider call started at start.
func ObserveProvider(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProviderDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
