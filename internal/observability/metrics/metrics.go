// Package metrics exposes Prometheus counters for job lifecycle and
// notification delivery events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result constants for metric labelling.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	// JobTransitionsTotal counts job state transitions by target state and result.
	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchd_job_transitions_total",
			Help: "Total number of job state transitions.",
		},
		[]string{"transition", "result"},
	)

	// AcceptRaceTotal counts acceptance attempts by outcome. "won" means the
	// translator claimed the job; "lost" means someone else got there first;
	// "ineligible" means the translator was not in the offer set.
	AcceptRaceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchd_accept_race_total",
			Help: "Total number of job acceptance attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal counts individual notification deliveries by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchd_notifications_total",
			Help: "Total number of notification deliveries attempted.",
		},
		[]string{"channel", "result"},
	)

	// OffersDispatchedTotal counts offer fan-outs per dispatch run.
	OffersDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatchd_offers_dispatched_total",
			Help: "Total number of offer dispatch runs.",
		},
	)
)

// RecordTransition records a job transition outcome.
func RecordTransition(transition string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	JobTransitionsTotal.WithLabelValues(transition, result).Inc()
}

// RecordAcceptOutcome records the outcome of one acceptance attempt.
func RecordAcceptOutcome(outcome string) {
	AcceptRaceTotal.WithLabelValues(outcome).Inc()
}

// RecordDelivery records a single notification delivery attempt.
func RecordDelivery(channel string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	NotificationsTotal.WithLabelValues(channel, result).Inc()
}
