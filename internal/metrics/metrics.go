// Package metrics exposes Prometheus instrumentation for the matchmaking
// engine, the relay and the moderation workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueSize tracks the number of participants waiting for a partner.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_match_queue_size",
		Help: "Current number of participants waiting for a partner",
	})

	// ActivePairings tracks the number of open pairings.
	ActivePairings = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_active_pairings",
		Help: "Current number of open pairings",
	})

	PairingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strangerchat_pairings_total",
		Help: "Total number of pairings created",
	})

	// MessagesRelayed counts relay attempts by payload kind and result ("delivered" or "failed").
	MessagesRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_messages_relayed_total",
		Help: "Total number of relay attempts",
	}, []string{"kind", "result"})

	// WaitDuration records the time a participant spent in the queue before being matched.
	WaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strangerchat_wait_duration_seconds",
		Help:    "Time from joining the queue to being matched",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// Reports counts report lifecycle events: "filed", "accepted", "rejected".
	Reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_reports_total",
		Help: "Total number of report lifecycle events",
	}, []string{"event"})

	// Bans counts issued bans by source: "report" or "admin".
	Bans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_bans_total",
		Help: "Total number of bans issued",
	}, []string{"source"})

	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strangerchat_notification_failures_total",
		Help: "Total number of system notifications the transport failed to deliver",
	})
)

func init() {
	prometheus.MustRegister(
		QueueSize,
		ActivePairings,
		PairingsTotal,
		MessagesRelayed,
		WaitDuration,
		Reports,
		Bans,
		NotificationFailures,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
