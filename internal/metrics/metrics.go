// Package metrics exposes the Prometheus instrumentation shared by the
// pipeline and the serve-mode scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts pipeline runs by outcome ("ok" or "error").
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impactcal_runs_total",
		Help: "Total pipeline runs, labelled by outcome.",
	}, []string{"status"})

	// EventsSeen counts events parsed from the upstream feeds.
	EventsSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impactcal_events_seen_total",
		Help: "Total events parsed from the upstream feeds.",
	})

	// EventsPublished counts events retained in the published feed.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impactcal_events_published_total",
		Help: "Total events retained in the published feed.",
	})

	// FetchFailures counts upstream fetch failures, required and
	// optional alike.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impactcal_fetch_failures_total",
		Help: "Total upstream fetch failures.",
	})

	// LastSuccess records when a feed was last published.
	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "impactcal_last_success_timestamp_seconds",
		Help: "Unix time of the last successful publish.",
	})
)
